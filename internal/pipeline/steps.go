package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitemirror/internal/asset"
	"github.com/nao1215/sitemirror/internal/extract"
	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/rewrite"
	"github.com/nao1215/sitemirror/internal/site"
)

// AssetFetcher localizes one resource and reports whether it is on disk.
type AssetFetcher interface {
	Fetch(ctx context.Context, req asset.Request) bool
}

// Components holds what the default steps need.
type Components struct {
	// Root is the export root.
	Root string

	// Domain is the mirrored domain.
	Domain site.Domain

	// Getter fetches pages.
	Getter fetch.Getter

	// Assets downloads stylesheets, scripts and images.
	Assets AssetFetcher

	// Rewriter replaces domain references.
	Rewriter *rewrite.Rewriter

	// Logger is used by every step.
	Logger *slog.Logger
}

// DefaultSteps returns the export steps in execution order.
func DefaultSteps(c Components) []Step {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return []Step{
		&SkipExistingStep{logger: logger},
		&DomainStep{domain: c.Domain, logger: logger},
		&FetchStep{getter: c.Getter, logger: logger},
		&ExtractStep{},
		&LocalizeStep{root: c.Root, assets: c.Assets, rewriter: c.Rewriter},
		&RewriteStep{rewriter: c.Rewriter},
		&PersistStep{},
	}
}

// SkipExistingStep skips pages whose index.html is already written.
type SkipExistingStep struct {
	logger *slog.Logger
}

// Name returns the step name.
func (s *SkipExistingStep) Name() string {
	return "skip_existing"
}

// Do executes the step.
func (s *SkipExistingStep) Do(_ context.Context, page *Page) error {
	if site.Exists(page.File) {
		s.logger.Info("page already exported", "url", page.URL, "path", page.File)
		return ErrSkip
	}
	return nil
}

// DomainStep skips pages outside the target domain.
type DomainStep struct {
	domain site.Domain
	logger *slog.Logger
}

// Name returns the step name.
func (s *DomainStep) Name() string {
	return "domain"
}

// Do executes the step.
func (s *DomainStep) Do(_ context.Context, page *Page) error {
	if !s.domain.Contains(page.URL) {
		s.logger.Info("skipping external page", "url", page.URL)
		return ErrSkip
	}
	return nil
}

// FetchStep downloads and parses the page.
// Any status other than 2xx fails the page. A response that is not an HTML
// document skips the page; its URL belongs to the asset fetcher.
type FetchStep struct {
	getter fetch.Getter
	logger *slog.Logger
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the step.
func (s *FetchStep) Do(ctx context.Context, page *Page) error {
	s.logger.Info("exporting page", "url", page.URL)

	resp, err := s.getter.Get(ctx, page.URL)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if !resp.IsHTML() {
		s.logger.Info("skipping non-HTML page", "url", page.URL, "content_type", resp.ContentType)
		return ErrSkip
	}

	body, err := resp.HTML()
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", page.URL, err)
	}

	page.Body = resp.Body
	page.Doc = doc
	return nil
}

// ExtractStep classifies the page and extracts its content.
type ExtractStep struct{}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the step.
func (s *ExtractStep) Do(_ context.Context, page *Page) error {
	page.Record = extract.Extract(page.Doc, page.URL, extract.Classify(page.Doc))
	page.Record.ComputeHash(page.Body)
	return nil
}

// reference is an attribute that points at a resource to localize.
type reference struct {
	selector string
	attr     string
	media    bool
	srcset   bool
}

// references lists the localized attributes in processing order.
var references = []reference{
	{selector: "link[rel~=stylesheet][href]", attr: "href"},
	{selector: "script[src]", attr: "src"},
	{selector: "img[src]", attr: "src", media: true},
	{selector: "img[srcset]", attr: "srcset", media: true, srcset: true},
	{selector: "source[srcset]", attr: "srcset", media: true, srcset: true},
	{selector: "source[src]", attr: "src"},
}

// LocalizeStep downloads referenced stylesheets, scripts and images and
// points the references at the mirrored copies. References that could not
// be downloaded are left untouched.
type LocalizeStep struct {
	root     string
	assets   AssetFetcher
	rewriter *rewrite.Rewriter
}

// Name returns the step name.
func (s *LocalizeStep) Name() string {
	return "localize_assets"
}

// Do executes the step.
func (s *LocalizeStep) Do(ctx context.Context, page *Page) error {
	base, err := url.Parse(page.URL)
	if err != nil {
		return fmt.Errorf("invalid page URL %q: %w", page.URL, err)
	}

	for _, ref := range references {
		page.Doc.Find(ref.selector).Each(func(_ int, sel *goquery.Selection) {
			value, _ := sel.Attr(ref.attr)
			if ref.srcset {
				if rewritten, ok := s.localizeSrcset(ctx, base, value, ref.media); ok {
					sel.SetAttr(ref.attr, rewritten)
				}
				return
			}
			if local, ok := s.localize(ctx, base, value, ref.media); ok {
				sel.SetAttr(ref.attr, local)
			}
		})
	}

	return ctx.Err()
}

// localize downloads one reference and returns its replacement-base URL.
func (s *LocalizeStep) localize(ctx context.Context, base *url.URL, ref string, media bool) (string, bool) {
	abs, ok := site.Resolve(base, ref)
	if !ok || !isHTTP(abs) {
		return "", false
	}

	file, rel, err := site.AssetPath(s.root, abs)
	if err != nil {
		return "", false
	}

	if !s.assets.Fetch(ctx, asset.Request{URL: abs, SavePath: file, Media: media}) {
		return "", false
	}
	return s.rewriter.Ref(rel), true
}

// localizeSrcset localizes every candidate of a srcset value and keeps
// only the ones that succeeded, with their descriptors.
func (s *LocalizeStep) localizeSrcset(ctx context.Context, base *url.URL, srcset string, media bool) (string, bool) {
	var kept []string
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}

		local, ok := s.localize(ctx, base, fields[0], media)
		if !ok {
			continue
		}
		kept = append(kept, strings.Join(append([]string{local}, fields[1:]...), " "))
	}

	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, ", "), true
}

func isHTTP(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// RewriteStep replaces every remaining domain reference in the document.
type RewriteStep struct {
	rewriter *rewrite.Rewriter
}

// Name returns the step name.
func (s *RewriteStep) Name() string {
	return "rewrite"
}

// Do executes the step.
func (s *RewriteStep) Do(_ context.Context, page *Page) error {
	doc, err := s.rewriter.Rewrite(page.Doc)
	if err != nil {
		return err
	}
	page.Doc = doc
	return nil
}

// PersistStep writes the document to the page's index.html.
type PersistStep struct{}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do executes the step.
func (s *PersistStep) Do(_ context.Context, page *Page) error {
	html, err := page.Doc.Html()
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", page.URL, err)
	}
	return site.WriteFile(page.File, strings.NewReader(html))
}
