package crawler

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/site"
	"golang.org/x/sync/errgroup"
)

// Discoverer walks the live link graph from a set of seed URLs and returns
// every same-domain page it can reach. Linked URLs that answer with a
// non-HTML document (uploaded images, PDFs) are kept apart as files.
//
// The frontier is processed one level at a time by a bounded pool of
// workers. A URL is marked visited when it enters the frontier, so each
// URL is fetched at most once even when many pages link to it.
type Discoverer struct {
	getter         fetch.Getter
	domain         site.Domain
	logger         *slog.Logger
	concurrency    int
	maxPages       int
	ignorePatterns []string

	mu         sync.Mutex
	visited    map[string]bool
	discovered map[string]bool
	files      map[string]bool
	fetched    int
	failed     int
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithConcurrency sets the number of pages fetched at the same time.
func WithConcurrency(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithMaxPages stops expanding the frontier after n fetches.
// URLs found up to that point are still returned. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(d *Discoverer) {
		d.maxPages = n
	}
}

// WithIgnorePatterns skips links whose path matches any glob pattern.
// Skipped links are neither fetched nor returned.
func WithIgnorePatterns(patterns []string) Option {
	return func(d *Discoverer) {
		d.ignorePatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Discoverer) {
		d.logger = logger
	}
}

// NewDiscoverer creates a Discoverer restricted to domain.
func NewDiscoverer(getter fetch.Getter, domain site.Domain, opts ...Option) *Discoverer {
	d := &Discoverer{
		getter:      getter,
		domain:      domain,
		logger:      slog.Default(),
		concurrency: 1,
		visited:     make(map[string]bool),
		discovered:  make(map[string]bool),
		files:       make(map[string]bool),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Discover returns the seeds plus every same-domain URL transitively linked
// from them, sorted, minus the URLs that turned out to be files (see Files).
// Pages that fail to load are kept in the result but their links are never
// followed. When ctx is cancelled the URLs found so far are returned
// together with ctx.Err().
func (d *Discoverer) Discover(ctx context.Context, seeds []string) ([]string, error) {
	frontier := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if d.admit(seed) {
			frontier = append(frontier, seed)
		}
	}

	for len(frontier) > 0 && ctx.Err() == nil {
		frontier = d.expand(ctx, frontier)
	}

	urls := d.URLs()
	d.logger.Info("discovery finished",
		"urls", len(urls),
		"files", len(d.Files()),
		"fetched", d.Stats().PagesFetched,
	)
	return urls, ctx.Err()
}

// expand fetches every URL of one frontier level and returns the next level.
func (d *Discoverer) expand(ctx context.Context, level []string) []string {
	var (
		nextMu sync.Mutex
		next   []string
	)

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for _, pageURL := range level {
		if ctx.Err() != nil {
			break
		}
		if !d.reserveFetch() {
			d.logger.Warn("page limit reached, not expanding", "url", pageURL, "max_pages", d.maxPages)
			continue
		}

		g.Go(func() error {
			links := d.visit(ctx, pageURL)

			added := 0
			for _, link := range links {
				if d.admit(link) {
					nextMu.Lock()
					next = append(next, link)
					nextMu.Unlock()
					added++
				}
			}
			d.logger.Debug("added new links to frontier", "url", pageURL, "new", added)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	return next
}

// admit records an in-domain URL as discovered and reports whether it is
// new to the frontier.
func (d *Discoverer) admit(rawURL string) bool {
	if !d.domain.Contains(rawURL) || !d.shouldCrawl(rawURL) {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.discovered[rawURL] = true
	if d.visited[rawURL] {
		return false
	}
	d.visited[rawURL] = true
	return true
}

// reserveFetch counts one fetch against the page limit.
func (d *Discoverer) reserveFetch() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.maxPages > 0 && d.fetched >= d.maxPages {
		return false
	}
	d.fetched++
	return true
}

// visit fetches one page and returns its internal links.
func (d *Discoverer) visit(ctx context.Context, pageURL string) []string {
	d.logger.Info("fetching links", "url", pageURL)

	resp, err := d.getter.Get(ctx, pageURL)
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("failed to fetch page for links", "url", pageURL, "error", err)
		}
		d.countFailure()
		return nil
	}

	if !resp.IsHTML() {
		d.logger.Debug("linked file is not a page", "url", pageURL, "content_type", resp.ContentType)
		d.mu.Lock()
		d.files[pageURL] = true
		d.mu.Unlock()
		return nil
	}

	body, err := resp.HTML()
	if err != nil {
		body = resp.Body
	}

	// Relative links resolve against the document's own address.
	base := pageURL
	if resp.Redirected() {
		d.logger.Debug("page redirected", "url", pageURL, "final_url", resp.FinalURL)
		base = resp.FinalURL
	}

	parser, err := NewParser(base, d.domain)
	if err != nil {
		d.countFailure()
		return nil
	}
	result, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		d.logger.Error("failed to parse page", "url", pageURL, "error", err)
		d.countFailure()
		return nil
	}

	d.logger.Info("found internal links", "url", pageURL, "count", len(result.InternalLinks))
	return result.InternalLinks
}

func (d *Discoverer) countFailure() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed++
}

// shouldCrawl reports whether the URL path escapes every ignore pattern.
func (d *Discoverer) shouldCrawl(rawURL string) bool {
	if len(d.ignorePatterns) == 0 {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range d.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// URLs returns the discovered pages in sorted order.
func (d *Discoverer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	urls := make([]string, 0, len(d.discovered))
	for u := range d.discovered {
		if !d.files[u] {
			urls = append(urls, u)
		}
	}
	slices.Sort(urls)
	return urls
}

// Files returns the discovered URLs served as non-HTML documents, sorted.
// They are downloaded as they are instead of being exported as pages.
func (d *Discoverer) Files() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	files := make([]string, 0, len(d.files))
	for u := range d.files {
		files = append(files, u)
	}
	slices.Sort(files)
	return files
}

// Stats returns current discovery statistics.
func (d *Discoverer) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		PagesFetched:   d.fetched,
		Failures:       d.failed,
		URLsDiscovered: len(d.discovered),
	}
}

// Stats contains discovery statistics.
type Stats struct {
	// PagesFetched is the number of pages requested.
	PagesFetched int

	// Failures is the number of pages that could not be fetched or parsed.
	Failures int

	// URLsDiscovered is the number of unique in-domain URLs found.
	URLsDiscovered int
}
