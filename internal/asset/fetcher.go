package asset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/site"
	"golang.org/x/sync/singleflight"
)

// errNotDownloaded marks a download that failed without counting as an error.
var errNotDownloaded = errors.New("asset not downloaded")

// MediaSink receives a record for every media file written to disk.
type MediaSink interface {
	AddAsset(rec model.AssetRecord)
}

// Request describes one resource to localize.
type Request struct {
	// URL is the absolute resource URL.
	URL string

	// SavePath is the destination file inside the export root.
	SavePath string

	// Media marks images, which are recorded in the manifest.
	Media bool
}

// Fetcher downloads resources of the target domain.
type Fetcher struct {
	opener fetch.Opener
	domain site.Domain
	logger *slog.Logger
	stats  *model.Statistics
	sink   MediaSink
	exif   bool
	group  singleflight.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithStatistics sets the counters updated by downloads and failures.
func WithStatistics(stats *model.Statistics) Option {
	return func(f *Fetcher) {
		f.stats = stats
	}
}

// WithMediaSink sets where media records are sent.
func WithMediaSink(sink MediaSink) Option {
	return func(f *Fetcher) {
		f.sink = sink
	}
}

// WithEXIF enables EXIF metadata on media records.
func WithEXIF(enabled bool) Option {
	return func(f *Fetcher) {
		f.exif = enabled
	}
}

// NewFetcher creates a Fetcher restricted to domain.
func NewFetcher(opener fetch.Opener, domain site.Domain, opts ...Option) *Fetcher {
	f := &Fetcher{
		opener: opener,
		domain: domain,
		logger: slog.Default(),
		stats:  model.NewStatistics(),
		exif:   true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch localizes one resource and reports whether the file is now
// present at req.SavePath. Resources outside the target domain are
// declined. Non-success statuses are logged and reported as false;
// transport and filesystem failures are additionally counted as errors.
func (f *Fetcher) Fetch(ctx context.Context, req Request) bool {
	if !f.domain.Contains(req.URL) {
		f.logger.Info("skipping external asset", "url", req.URL)
		return false
	}

	if site.IsFile(req.SavePath) {
		f.logger.Debug("asset already present", "url", req.URL, "path", req.SavePath)
		return true
	}

	_, err, _ := f.group.Do(req.SavePath, func() (any, error) {
		// A previous flight for this path may have finished in between.
		if site.IsFile(req.SavePath) {
			return nil, nil
		}
		return nil, f.download(ctx, req)
	})

	return err == nil
}

func (f *Fetcher) download(ctx context.Context, req Request) error {
	resp, err := f.opener.Open(ctx, req.URL)
	if err != nil {
		f.fail(ctx, req, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("asset download failed", "url", req.URL, "status", resp.StatusCode)
		return fmt.Errorf("%w: %w", errNotDownloaded, &fetch.StatusError{URL: req.URL, StatusCode: resp.StatusCode})
	}

	if err := site.WriteFile(req.SavePath, resp.Body); err != nil {
		f.fail(ctx, req, err)
		return err
	}

	f.stats.AssetDownloaded()
	f.logger.Info("asset downloaded", "url", req.URL, "path", req.SavePath)

	if req.Media && f.sink != nil {
		rec := model.NewAssetRecord(req.URL, req.SavePath)
		if f.exif && model.HasEXIF(rec.Type) {
			rec.Metadata = ReadEXIF(req.SavePath)
		}
		f.sink.AddAsset(rec)
	}

	return nil
}

// fail logs and counts a download error. Cancellation is not counted.
func (f *Fetcher) fail(ctx context.Context, req Request, err error) {
	if ctx.Err() != nil {
		f.logger.Debug("asset download cancelled", "url", req.URL)
		return
	}
	f.logger.Error("asset download failed", "url", req.URL, "error", err)
	f.stats.Error()
}
