package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/site"
)

// Namespace is the XML namespace of the sitemap protocol 0.9.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// nestedSuffix marks a <loc> entry that names another sitemap.
const nestedSuffix = ".xml"

// Resolver expands a sitemap index into the leaf page URLs it lists.
type Resolver struct {
	getter fetch.Getter
	domain site.Domain
	logger *slog.Logger

	mu      sync.Mutex
	visited map[string]bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver that keeps only URLs in domain.
func NewResolver(getter fetch.Getter, domain site.Domain, opts ...Option) *Resolver {
	r := &Resolver{
		getter:  getter,
		domain:  domain,
		logger:  slog.Default(),
		visited: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches sitemapURL and every sitemap it references and returns
// the deduplicated leaf URLs in first-seen order.
// A sitemap that cannot be fetched or parsed contributes nothing; a
// sitemap seen before (a cycle in the index) is skipped.
func (r *Resolver) Resolve(ctx context.Context, sitemapURL string) []string {
	seen := make(map[string]bool)
	var urls []string
	r.resolve(ctx, sitemapURL, func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	})
	return urls
}

func (r *Resolver) resolve(ctx context.Context, sitemapURL string, collect func(string)) {
	if ctx.Err() != nil {
		return
	}
	if !r.domain.Contains(sitemapURL) {
		r.logger.Info("skipping external sitemap", "url", sitemapURL)
		return
	}
	if !r.markVisited(sitemapURL) {
		r.logger.Warn("sitemap cycle detected", "url", sitemapURL)
		return
	}

	r.logger.Info("fetching sitemap", "url", sitemapURL)
	locs, err := r.fetchLocs(ctx, sitemapURL)
	if err != nil {
		r.logger.Error("failed to read sitemap", "url", sitemapURL, "error", err)
		return
	}

	for _, loc := range locs {
		if strings.HasSuffix(strings.ToLower(loc), nestedSuffix) {
			r.resolve(ctx, loc, collect)
			continue
		}
		if !r.domain.Contains(loc) {
			r.logger.Debug("skipping external sitemap entry", "url", loc)
			continue
		}
		collect(loc)
	}
}

// markVisited records sitemapURL and reports whether it was new.
func (r *Resolver) markVisited(sitemapURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.visited[sitemapURL] {
		return false
	}
	r.visited[sitemapURL] = true
	return true
}

// fetchLocs returns the text of every <loc> element in the sitemap namespace.
func (r *Resolver) fetchLocs(ctx context.Context, sitemapURL string) ([]string, error) {
	resp, err := r.getter.Get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return ParseLocs(resp.Body)
}

// ParseLocs extracts the <loc> values of a sitemap or sitemap index.
// Elements outside the sitemap namespace are ignored.
func ParseLocs(data []byte) ([]string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("malformed sitemap XML: %w", err)
	}

	nodes, err := xmlquery.QueryAll(doc, "//loc")
	if err != nil {
		return nil, fmt.Errorf("failed to query sitemap: %w", err)
	}

	locs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node.NamespaceURI != Namespace {
			continue
		}
		if loc := strings.TrimSpace(node.InnerText()); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}
