package crawler

import (
	"io"
	"net/url"
	"strings"

	"github.com/nao1215/sitemirror/internal/site"
	"golang.org/x/net/html"
)

// Parser extracts anchors from an HTML page.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL

	// domain decides which links are internal.
	domain site.Domain
}

// ParseResult contains the links found on a page.
type ParseResult struct {
	// InternalLinks are the deduplicated links inside the target domain,
	// in document order.
	InternalLinks []string
}

// NewParser creates a parser that resolves links against baseURL.
func NewParser(baseURL string, domain site.Domain) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u, domain: domain}, nil
}

// Parse parses HTML content and collects its anchors.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		InternalLinks: make([]string, 0),
	}
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			resolved := p.resolveURL(getAttr(n, "href"))
			if resolved != "" && p.domain.Contains(resolved) && !seen[resolved] {
				seen[resolved] = true
				result.InternalLinks = append(result.InternalLinks, resolved)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return result, nil
}

// resolveURL resolves href against the base URL.
// Empty references, same-page fragments and script or non-web schemes
// resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	resolved, ok := site.Resolve(p.baseURL, href)
	if !ok {
		return ""
	}
	return resolved
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
