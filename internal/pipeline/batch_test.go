package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitemirror/internal/model"
)

// fakeExporter returns outcomes from a function and counts errors like
// PageExporter does.
type fakeExporter struct {
	stats  *model.Statistics
	export func(ctx context.Context, rawURL string) Outcome
	calls  atomic.Int32
}

func (f *fakeExporter) Export(ctx context.Context, rawURL string) Outcome {
	f.calls.Add(1)
	outcome := f.export(ctx, rawURL)
	if outcome == Failed {
		f.stats.Error()
	}
	return outcome
}

func quietBatchLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func urlList(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = "https://example.com/p/" + string(rune('a'+i)) + "/"
	}
	return urls
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeExporter{})
		if bp.concurrency != 4 {
			t.Errorf("expected default concurrency 4, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(&fakeExporter{}, WithConcurrency(0))
		if bp.concurrency != 4 {
			t.Errorf("expected concurrency 4, got %d", bp.concurrency)
		}
	})
}

func TestBatchProcessorProcess(t *testing.T) {
	t.Parallel()

	t.Run("isolates failures", func(t *testing.T) {
		t.Parallel()

		stats := model.NewStatistics()
		exp := &fakeExporter{stats: stats, export: func(_ context.Context, rawURL string) Outcome {
			switch rawURL {
			case "https://example.com/p/b/":
				return Failed
			case "https://example.com/p/c/":
				return Skipped
			default:
				return Exported
			}
		}}

		bp := NewBatchProcessor(exp, WithBatchLogger(quietBatchLogger()))
		summary, err := bp.Process(t.Context(), urlList(5))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Exported != 3 || summary.Skipped != 1 || summary.Failed != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if summary.Total() != 5 {
			t.Errorf("Total() = %d", summary.Total())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		exp := &fakeExporter{stats: model.NewStatistics(), export: func(context.Context, string) Outcome {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
			return Exported
		}}

		bp := NewBatchProcessor(exp, WithConcurrency(2), WithBatchLogger(quietBatchLogger()))
		if _, err := bp.Process(t.Context(), urlList(8)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent exports, got %d", peak.Load())
		}
	})

	t.Run("reports progress for every page", func(t *testing.T) {
		t.Parallel()

		var (
			mu   sync.Mutex
			seen []int
		)
		exp := &fakeExporter{stats: model.NewStatistics(), export: func(context.Context, string) Outcome { return Exported }}

		bp := NewBatchProcessor(exp,
			WithBatchLogger(quietBatchLogger()),
			WithProgress(func(done, total int, _ string, _ Outcome) {
				mu.Lock()
				defer mu.Unlock()
				if total != 6 {
					t.Errorf("total = %d", total)
				}
				seen = append(seen, done)
			}),
		)
		if _, err := bp.Process(t.Context(), urlList(6)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(seen) != 6 {
			t.Errorf("expected 6 progress calls, got %d", len(seen))
		}
	})

	t.Run("aborts at the error threshold", func(t *testing.T) {
		t.Parallel()

		stats := model.NewStatistics()
		exp := &fakeExporter{stats: stats, export: func(context.Context, string) Outcome { return Failed }}

		bp := NewBatchProcessor(exp,
			WithConcurrency(1),
			WithMaxErrors(2, stats),
			WithBatchLogger(quietBatchLogger()),
		)
		summary, err := bp.Process(t.Context(), urlList(10))
		if !errors.Is(err, ErrTooManyErrors) {
			t.Fatalf("expected ErrTooManyErrors, got %v", err)
		}
		if exp.calls.Load() != 2 {
			t.Errorf("expected 2 exports before abort, got %d", exp.calls.Load())
		}
		if summary.Failed != 2 {
			t.Errorf("unexpected summary %+v", summary)
		}
	})

	t.Run("zero threshold never aborts", func(t *testing.T) {
		t.Parallel()

		stats := model.NewStatistics()
		exp := &fakeExporter{stats: stats, export: func(context.Context, string) Outcome { return Failed }}

		bp := NewBatchProcessor(exp, WithMaxErrors(0, stats), WithBatchLogger(quietBatchLogger()))
		summary, err := bp.Process(t.Context(), urlList(5))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Failed != 5 {
			t.Errorf("unexpected summary %+v", summary)
		}
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		t.Parallel()

		exp := &fakeExporter{stats: model.NewStatistics(), export: func(context.Context, string) Outcome { return Exported }}

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		bp := NewBatchProcessor(exp, WithBatchLogger(quietBatchLogger()))
		summary, err := bp.Process(ctx, urlList(5))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if summary.Total() != 0 || exp.calls.Load() != 0 {
			t.Errorf("expected no exports, got %+v", summary)
		}
	})
}
