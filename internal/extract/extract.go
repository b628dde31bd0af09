package extract

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/sitemirror/internal/model"
	"golang.org/x/net/html"
)

const (
	// postSelector marks a document as a blog post.
	postSelector = "article.post"

	// excerptSelector is looked up inside the content container.
	excerptSelector = "div.entry-summary"

	// MetaDescription is the Meta key holding the description meta tag.
	MetaDescription = "description"

	// MetaSiteName is the Meta key holding og:site_name.
	MetaSiteName = "site_name"
)

// contentSelectors are tried in order; the first match is the content container.
var contentSelectors = []string{
	"div.entry-content",
	"article",
}

// IsPost reports whether doc contains an <article class="post"> container.
func IsPost(doc *goquery.Document) bool {
	return doc.Find(postSelector).Length() > 0
}

// Classify returns KindPost or KindPage for doc.
func Classify(doc *goquery.Document) model.Kind {
	if IsPost(doc) {
		return model.KindPost
	}
	return model.KindPage
}

// Extract builds the record of the page at url.
func Extract(doc *goquery.Document, url string, kind model.Kind) model.PageRecord {
	rec := model.NewPageRecord(url, kind)

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())

	if v, ok := metaContent(doc, "name", "description"); ok {
		rec.Meta[MetaDescription] = v
	}
	if v, ok := metaContent(doc, "property", "og:site_name"); ok {
		rec.Meta[MetaSiteName] = v
	}
	rec.Author, _ = metaContent(doc, "name", "author")
	rec.Date, _ = metaContent(doc, "property", "article:published_time")
	rec.ModifiedDate, _ = metaContent(doc, "property", "article:modified_time")
	rec.FeaturedImage, _ = metaContent(doc, "property", "og:image")

	rec.Categories, rec.Tags = Terms(doc)

	if content := contentContainer(doc); content != nil {
		rec.Content = Text(content)
		if excerpt := content.Find(excerptSelector).First(); excerpt.Length() > 0 {
			rec.Excerpt = Text(excerpt)
		}
	}

	return rec
}

// Terms returns the category and tag names linked from doc, in document order.
// Only anchors whose rel carries both the "category" and "tag" tokens are
// considered; each is then bucketed by substring match on the rel value.
func Terms(doc *goquery.Document) (categories, tags []string) {
	categories = []string{}
	tags = []string{}

	doc.Find("a[rel]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !hasTokens(rel, "category", "tag") {
			return
		}

		name := strings.TrimSpace(s.Text())
		if name == "" {
			return
		}
		if strings.Contains(rel, "category") {
			categories = append(categories, name)
		}
		if strings.Contains(rel, "tag") {
			tags = append(tags, name)
		}
	})

	return categories, tags
}

// Text returns the text of the selection with every text node trimmed and
// the non-empty pieces joined by single spaces. Script and style contents
// are skipped.
func Text(s *goquery.Selection) string {
	var parts []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range s.Nodes {
		walk(n)
	}

	return strings.Join(parts, " ")
}

func contentContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range contentSelectors {
		if s := doc.Find(selector).First(); s.Length() > 0 {
			return s
		}
	}
	return nil
}

// metaContent returns the content of the first <meta attr="value"> tag.
func metaContent(doc *goquery.Document, attr, value string) (string, bool) {
	var (
		content string
		found   bool
	)
	doc.Find("meta[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, _ := s.Attr(attr); !strings.EqualFold(v, value) {
			return true
		}
		content, _ = s.Attr("content")
		found = true
		return false
	})
	return content, found
}

func hasTokens(value string, tokens ...string) bool {
	fields := strings.Fields(strings.ToLower(value))
	for _, token := range tokens {
		if !slices.Contains(fields, token) {
			return false
		}
	}
	return true
}
