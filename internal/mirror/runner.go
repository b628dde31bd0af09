package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitemirror/internal/allowlist"
	"github.com/nao1215/sitemirror/internal/asset"
	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/log"
	"github.com/nao1215/sitemirror/internal/manifest"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/pipeline"
	"github.com/nao1215/sitemirror/internal/report"
	"github.com/nao1215/sitemirror/internal/rewrite"
	"github.com/nao1215/sitemirror/internal/site"
	"github.com/nao1215/sitemirror/internal/sitemap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of a run.
type Result struct {
	// Domain is the mirrored domain.
	Domain string

	// SitemapURL is the sitemap the run started from.
	SitemapURL string

	// ExportDir is the export root.
	ExportDir string

	// StartedAt is when the run started.
	StartedAt time.Time

	// Duration is how long the run took.
	Duration time.Duration

	// Links are the discovered pages, sorted.
	Links []string

	// Files are the discovered URLs served as non-HTML documents, sorted.
	Files []string

	// FilesSaved is the number of linked files present after the run.
	FilesSaved int

	// Manifest is the exported content.
	Manifest *model.Manifest

	// Stats are the final counters.
	Stats model.RunStatistics

	// Pages summarizes the page export.
	Pages pipeline.Summary

	// AllowListed is the number of allow-listed URLs saved.
	AllowListed int

	// Requests is the number of HTTP requests sent.
	Requests int64
}

// Summary converts the result for the report writers. runErr is the error
// returned by Run, if any.
func (r *Result) Summary(runErr error) *report.RunSummary {
	s := &report.RunSummary{
		Domain:     r.Domain,
		SitemapURL: r.SitemapURL,
		ExportDir:  r.ExportDir,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration,
		Links:      len(r.Links),
		Stats:      r.Stats,
		Manifest:   r.Manifest,
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

// Runner executes mirror runs for one configuration.
type Runner struct {
	cfg        *config.Config
	console    io.Writer
	httpClient *http.Client
	progress   pipeline.ProgressFunc
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithConsole sets where warnings (and debug output when verbose) are printed.
func WithConsole(w io.Writer) Option {
	return func(r *Runner) {
		r.console = w
	}
}

// WithHTTPClient replaces the HTTP client built from the configuration.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Runner) {
		r.httpClient = hc
	}
}

// WithProgress sets a callback invoked after every exported page.
func WithProgress(fn pipeline.ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = fn
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a Runner. cfg must be finalized and valid.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		console: os.Stderr,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run mirrors the site. The manifest and statistics are written even when
// the run stops early, in which case the returned Result describes the
// partial export and the error says why it stopped.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cfg := r.cfg
	startedAt := r.now()
	root := cfg.ExportDir

	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	runLog, err := os.OpenFile(filepath.Join(root, report.FileRunLog), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // path is inside the export root
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer runLog.Close()

	logger := log.NewRunLogger(r.console, runLog, cfg.Verbose)
	logger.Info("starting site export",
		"domain", cfg.TargetDomain,
		"sitemap", cfg.SitemapURL,
		"export_dir", root,
	)

	client, err := r.client(logger)
	if err != nil {
		return nil, err
	}
	domain := site.Domain(cfg.TargetDomain)

	result := &Result{
		Domain:     cfg.TargetDomain,
		SitemapURL: cfg.SitemapURL,
		ExportDir:  root,
		StartedAt:  startedAt,
	}

	set, reused, runErr := r.discover(ctx, logger, client, domain)
	result.Links = set.Links
	result.Files = set.Files

	// A partial discovery is not recorded, so the next run discovers again.
	if runErr == nil && !reused {
		if err := report.WriteLinks(root, set.Links, set.Files); err != nil {
			return nil, err
		}
	}

	stats := model.NewStatistics()
	agg := manifest.New(siteURL(cfg), stats)
	assets := asset.NewFetcher(client, domain,
		asset.WithLogger(logger),
		asset.WithStatistics(stats),
		asset.WithMediaSink(agg),
	)

	if runErr == nil {
		result.Pages, runErr = r.export(ctx, logger, client, assets, agg, stats, set.Links)
	}

	// Linked files are fetched once every page is done, so they never
	// compete with page assets for a save path.
	if runErr == nil && len(set.Files) > 0 {
		result.FilesSaved, runErr = r.downloadFiles(ctx, logger, assets, set.Files)
	}

	result.Manifest = agg.Manifest(startedAt)
	result.Stats = agg.Statistics()
	if err := report.WriteManifest(root, result.Manifest); err != nil {
		return nil, errors.Join(runErr, err)
	}
	if err := report.WriteStatistics(root, result.Stats); err != nil {
		return nil, errors.Join(runErr, err)
	}

	if runErr == nil && cfg.AllowListPath != "" {
		result.AllowListed, runErr = r.downloadAllowList(ctx, logger, client)
	}

	result.Requests = client.Requests()
	result.Duration = r.now().Sub(startedAt)

	logger.Info("export finished",
		"pages_processed", result.Stats.PagesProcessed,
		"posts_found", result.Stats.PostsFound,
		"categories_found", result.Stats.CategoriesFound,
		"tags_found", result.Stats.TagsFound,
		"assets_downloaded", result.Stats.AssetsDownloaded,
		"errors", result.Stats.Errors,
		"duration", result.Duration,
	)
	if runErr != nil {
		logger.Error("export stopped early", "error", runErr)
	}

	return result, runErr
}

// client builds the fetch client shared by every component of a run.
func (r *Runner) client(logger *slog.Logger) (*fetch.Client, error) {
	cfg := r.cfg

	hc := r.httpClient
	if hc == nil {
		var err error
		hc, err = fetch.NewHTTPClient(fetch.TransportConfig{
			Timeout:      cfg.Timeout,
			ProxyAddress: cfg.ProxyAddress,
			UserAgent:    cfg.UserAgent,
			Headers:      cfg.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	opts := []fetch.Option{
		fetch.WithHTTPClient(hc),
		fetch.WithLogger(logger),
		fetch.WithRetry(cfg.MaxRetries, cfg.RetryBackoff),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, fetch.WithLimiter(fetch.NewHostLimiter(cfg.RateLimit, cfg.Burst)))
	}
	return fetch.NewClient(opts...), nil
}

// discover returns the pages and linked files of the site. The result of a
// finished discovery recorded in the export root is reused, without any
// request, unless the configuration asks for a new discovery.
func (r *Runner) discover(
	ctx context.Context,
	logger *slog.Logger,
	client *fetch.Client,
	domain site.Domain,
) (set *report.LinkSet, reused bool, err error) {
	cfg := r.cfg

	if !cfg.Rediscover {
		prev, ok, readErr := report.ReadLinks(cfg.ExportDir)
		switch {
		case readErr != nil:
			logger.Warn("cannot reuse links of a previous run", "error", readErr)
		case ok:
			logger.Info("reusing links of a previous run",
				"count", len(prev.Links),
				"files", len(prev.Files),
			)
			return prev, true, nil
		}
	}

	seeds := sitemap.NewResolver(client, domain, sitemap.WithLogger(logger)).Resolve(ctx, cfg.SitemapURL)
	if len(seeds) == 0 {
		logger.Warn("sitemap yielded no urls", "sitemap", cfg.SitemapURL)
	}

	discoverer := crawler.NewDiscoverer(client, domain,
		crawler.WithConcurrency(cfg.Workers),
		crawler.WithIgnorePatterns(cfg.IgnorePatterns),
		crawler.WithLogger(logger),
	)
	links, err := discoverer.Discover(ctx, seeds)
	set = &report.LinkSet{Links: links, Files: discoverer.Files()}

	crawlStats := discoverer.Stats()
	logger.Info("found internal links",
		"count", len(set.Links),
		"files", len(set.Files),
		"pages_fetched", crawlStats.PagesFetched,
		"failures", crawlStats.Failures,
	)
	return set, false, err
}

// export runs the page pipeline over links.
func (r *Runner) export(
	ctx context.Context,
	logger *slog.Logger,
	client *fetch.Client,
	assets *asset.Fetcher,
	agg *manifest.Aggregator,
	stats *model.Statistics,
	links []string,
) (pipeline.Summary, error) {
	cfg := r.cfg
	domain := site.Domain(cfg.TargetDomain)

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddSteps(pipeline.DefaultSteps(pipeline.Components{
		Root:     cfg.ExportDir,
		Domain:   domain,
		Getter:   client,
		Assets:   assets,
		Rewriter: rewrite.New(domain, cfg.ReplacementBase),
		Logger:   logger,
	})...)

	exporter := pipeline.NewPageExporter(cfg.ExportDir, p,
		pipeline.WithExporterLogger(logger),
		pipeline.WithExporterStatistics(stats),
		pipeline.WithPageSink(agg),
	)

	batchOpts := []pipeline.BatchOption{
		pipeline.WithBatchLogger(logger),
		pipeline.WithConcurrency(cfg.Workers),
		pipeline.WithMaxErrors(int64(cfg.MaxErrors), stats),
	}
	if r.progress != nil {
		batchOpts = append(batchOpts, pipeline.WithProgress(r.progress))
	}

	return pipeline.NewBatchProcessor(exporter, batchOpts...).Process(ctx, links)
}

// downloadFiles saves linked files under their asset paths and returns how
// many are present afterwards.
func (r *Runner) downloadFiles(ctx context.Context, logger *slog.Logger, assets *asset.Fetcher, files []string) (int, error) {
	var saved atomic.Int64

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for _, rawURL := range files {
		if ctx.Err() != nil {
			break
		}
		save, _, err := site.AssetPath(r.cfg.ExportDir, rawURL)
		if err != nil {
			logger.Warn("skipping linked file", "url", rawURL, "error", err)
			continue
		}
		g.Go(func() error {
			if assets.Fetch(ctx, asset.Request{URL: rawURL, SavePath: save}) {
				saved.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	logger.Info("linked files processed", "saved", saved.Load(), "total", len(files))
	return int(saved.Load()), ctx.Err()
}

// downloadAllowList saves the URLs listed in the allow list file.
// A missing file is not an error.
func (r *Runner) downloadAllowList(ctx context.Context, logger *slog.Logger, client *fetch.Client) (int, error) {
	path := r.cfg.AllowListPath

	urls, err := allowlist.ReadList(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("allow list not found, skipping", "path", path)
		return 0, nil
	}
	if err != nil {
		logger.Error("failed to read allow list", "path", path, "error", err)
		return 0, nil
	}
	logger.Info("read allow list", "path", path, "urls", len(urls))

	d := allowlist.NewDownloader(client,
		allowlist.WithLogger(logger),
		allowlist.WithConcurrency(r.cfg.Workers),
		allowlist.WithClock(r.now),
	)
	return d.Download(ctx, urls, r.cfg.ExportDir)
}

// siteURL is the home page of the target, using the sitemap's scheme.
func siteURL(cfg *config.Config) string {
	scheme := "https"
	if u, err := url.Parse(cfg.SitemapURL); err == nil && u.Scheme != "" {
		scheme = u.Scheme
	}
	return scheme + "://" + cfg.TargetDomain
}
