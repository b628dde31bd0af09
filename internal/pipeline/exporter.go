package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/sitemirror/internal/model"
)

// Outcome is the result of exporting one page.
type Outcome int

const (
	// Exported means the page was written to the mirror.
	Exported Outcome = iota

	// Skipped means there was nothing to do for the page.
	Skipped

	// Failed means the page could not be exported.
	Failed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Exported:
		return "exported"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageSink receives the record of every exported page.
type PageSink interface {
	AddPage(rec model.PageRecord)
}

// PageExporter runs the export pipeline for single URLs and keeps the
// run counters up to date.
type PageExporter struct {
	root     string
	pipeline *Pipeline
	stats    *model.Statistics
	sink     PageSink
	logger   *slog.Logger
}

// ExporterOption configures a PageExporter.
type ExporterOption func(*PageExporter)

// WithExporterLogger sets the logger.
func WithExporterLogger(logger *slog.Logger) ExporterOption {
	return func(e *PageExporter) {
		e.logger = logger
	}
}

// WithExporterStatistics sets the run counters.
func WithExporterStatistics(stats *model.Statistics) ExporterOption {
	return func(e *PageExporter) {
		e.stats = stats
	}
}

// WithPageSink sets where exported records are sent.
func WithPageSink(sink PageSink) ExporterOption {
	return func(e *PageExporter) {
		e.sink = sink
	}
}

// NewPageExporter creates a PageExporter writing below root.
func NewPageExporter(root string, pipeline *Pipeline, opts ...ExporterOption) *PageExporter {
	e := &PageExporter{
		root:     root,
		pipeline: pipeline,
		stats:    model.NewStatistics(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Export mirrors one URL. A failure is logged and counted and never
// affects other pages. Pages interrupted by cancellation are reported as
// failed without being counted.
func (e *PageExporter) Export(ctx context.Context, rawURL string) Outcome {
	page, err := NewPage(e.root, rawURL)
	if err == nil {
		err = e.pipeline.Execute(ctx, page)
	}

	switch {
	case err == nil:
		e.stats.PageProcessed(page.Record.IsPost())
		if e.sink != nil {
			e.sink.AddPage(page.Record)
		}
		e.logger.Info("page exported",
			"url", rawURL,
			"path", page.File,
			"type", page.Record.Kind,
		)
		return Exported
	case errors.Is(err, ErrSkip):
		return Skipped
	case ctx.Err() != nil:
		e.logger.Debug("page cancelled", "url", rawURL)
		return Failed
	default:
		e.logger.Error("page failed", "url", rawURL, "error", err)
		e.stats.Error()
		return Failed
	}
}
