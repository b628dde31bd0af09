package rewrite

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitemirror/internal/site"
)

// Rewriter substitutes domain references with the replacement base.
//
// Patterns are matched most specific first:
//
//  1. https://<domain>
//  2. http://<domain>
//  3. //<domain>
//  4. <domain>
//
// The first two become the base without its trailing slash, the third
// the base without its scheme, and the bare domain the base without
// "http://" or "https://". Text produced by a substitution is never
// matched again, so a shorter pattern cannot corrupt a longer one that
// was already rewritten.
type Rewriter struct {
	domain   site.Domain
	base     string
	replacer *strings.Replacer
}

// New creates a Rewriter from domain to the replacement base.
func New(domain site.Domain, base string) *Rewriter {
	d := domain.String()
	trimmed := strings.TrimRight(base, "/")
	noScheme := strings.NewReplacer("https:", "", "http:", "").Replace(trimmed)
	bare := strings.NewReplacer("https://", "", "http://", "").Replace(trimmed)

	return &Rewriter{
		domain: domain,
		base:   base,
		replacer: strings.NewReplacer(
			"https://"+d, trimmed,
			"http://"+d, trimmed,
			"//"+d, noScheme,
			d, bare,
		),
	}
}

// Base returns the replacement base.
func (r *Rewriter) Base() string {
	return r.base
}

// Ref returns the replacement-base URL of a mirror-relative path.
func (r *Rewriter) Ref(rel string) string {
	return site.JoinBase(r.base, rel)
}

// RewriteString rewrites every domain reference in s.
func (r *Rewriter) RewriteString(s string) string {
	if r.domain == "" {
		return s
	}
	return r.replacer.Replace(s)
}

// Rewrite serializes doc, rewrites it and parses the result into a new
// document.
func (r *Rewriter) Rewrite(doc *goquery.Document) (*goquery.Document, error) {
	src, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	out, err := goquery.NewDocumentFromReader(strings.NewReader(r.RewriteString(src)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rewritten document: %w", err)
	}
	return out, nil
}
