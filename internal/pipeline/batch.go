package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Exporter exports a single URL.
type Exporter interface {
	Export(ctx context.Context, rawURL string) Outcome
}

// ErrorCounter reports the number of errors of the run so far.
type ErrorCounter interface {
	Errors() int64
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Exported int
	Skipped  int
	Failed   int
}

// Total returns the number of pages that were processed.
func (s Summary) Total() int {
	return s.Exported + s.Skipped + s.Failed
}

// ProgressFunc is called after every page with the number of pages done.
type ProgressFunc func(done, total int, rawURL string, outcome Outcome)

// BatchProcessor exports many pages with a bounded number of workers.
type BatchProcessor struct {
	exporter    Exporter
	concurrency int
	maxErrors   int64
	errors      ErrorCounter
	progress    ProgressFunc
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of pages exported at once.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithMaxErrors aborts the batch once counter reports n errors.
// Zero disables the threshold.
func WithMaxErrors(n int64, counter ErrorCounter) BatchOption {
	return func(b *BatchProcessor) {
		b.maxErrors = n
		b.errors = counter
	}
}

// WithProgress sets a callback invoked after each page.
func WithProgress(fn ProgressFunc) BatchOption {
	return func(b *BatchProcessor) {
		b.progress = fn
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(exporter Exporter, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		exporter:    exporter,
		concurrency: 4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// Process exports every URL. A failed page does not stop the others.
// When the error threshold is reached the remaining pages are cancelled
// and ErrTooManyErrors is returned; when ctx is cancelled its error is
// returned. The summary covers the pages processed either way.
func (bp *BatchProcessor) Process(ctx context.Context, urls []string) (Summary, error) {
	bp.logger.Info("starting batch export",
		"total_pages", len(urls),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	var (
		mu      sync.Mutex
		summary Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for _, rawURL := range urls {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			outcome := bp.exporter.Export(gctx, rawURL)

			mu.Lock()
			switch outcome {
			case Exported:
				summary.Exported++
			case Skipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			done := summary.Total()
			mu.Unlock()

			bp.logger.Info("progress", "done", done, "total", len(urls))
			if bp.progress != nil {
				bp.progress(done, len(urls), rawURL, outcome)
			}

			if bp.maxErrors > 0 && bp.errors != nil {
				if n := bp.errors.Errors(); n >= bp.maxErrors {
					bp.logger.Error("error threshold reached", "errors", n, "max_errors", bp.maxErrors)
					return ErrTooManyErrors
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("batch export complete",
		"exported", summary.Exported,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed", time.Since(startTime),
	)

	return summary, err
}
