package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/site"
)

// Page is the state of one URL while it moves through the pipeline.
type Page struct {
	// URL is the page URL.
	URL string

	// File is the index.html path of the mirrored copy.
	File string

	// Body is the raw response body.
	Body []byte

	// Doc is the parsed document. Steps may replace it.
	Doc *goquery.Document

	// Record is the extracted content.
	Record model.PageRecord
}

// NewPage prepares the state of rawURL mirrored under root.
func NewPage(root, rawURL string) (*Page, error) {
	file, err := site.PageFile(root, rawURL)
	if err != nil {
		return nil, err
	}
	return &Page{URL: rawURL, File: file}, nil
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the page state left by
// the previous ones.
type Step interface {
	// Do executes the step. ErrSkip ends the page without failure.
	Do(ctx context.Context, page *Page) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence and stops at the first error.
// Cancellation is checked before each step.
func (p *Pipeline) Execute(ctx context.Context, page *Page) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Debug("pipeline cancelled",
				"step", step.Name(),
				"url", page.URL,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		if err := step.Do(ctx, page); err != nil {
			if !errors.Is(err, ErrSkip) {
				p.logger.Debug("step failed",
					"step", step.Name(),
					"url", page.URL,
					"error", err,
				)
			}
			return err
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", page.URL,
		)
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
