package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Kind distinguishes WordPress posts from static pages.
type Kind int

const (
	// KindPage is any document without the post marker.
	KindPage Kind = iota

	// KindPost is a document containing an <article class="post"> container.
	KindPost
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindPost:
		return "post"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseKind converts "page" or "post" into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "page":
		return KindPage, nil
	case "post":
		return KindPost, nil
	default:
		return KindPage, fmt.Errorf("unknown page kind %q", s)
	}
}

// PageRecord is the structured content extracted from one exported page.
// It is built once per successfully fetched page and not modified afterwards.
// Missing fields are empty strings or empty lists, never nil.
type PageRecord struct {
	// URL is the absolute URL the page was fetched from.
	URL string `json:"url"`

	// Kind is post or page.
	Kind Kind `json:"type"`

	// Title is the trimmed text of the <title> element.
	Title string `json:"title"`

	// Content is the text of the main content container.
	Content string `json:"content"`

	// Excerpt is the text of the entry summary inside the content container.
	Excerpt string `json:"excerpt"`

	// Categories and Tags are the taxonomy terms linked from this page,
	// in document order. They may repeat terms seen on other pages.
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`

	// Author, Date and ModifiedDate are copied verbatim from meta tags.
	Author       string `json:"author"`
	Date         string `json:"date"`
	ModifiedDate string `json:"modified_date"`

	// FeaturedImage is the og:image URL.
	FeaturedImage string `json:"featured_image"`

	// Meta holds other meta values, e.g. "description".
	Meta map[string]string `json:"meta"`

	// Hash is the SHA-256 of the page body as served by the origin.
	Hash string `json:"hash,omitempty"`
}

// NewPageRecord returns a record for url with every collection initialized.
func NewPageRecord(url string, kind Kind) PageRecord {
	return PageRecord{
		URL:        url,
		Kind:       kind,
		Categories: []string{},
		Tags:       []string{},
		Meta:       map[string]string{},
	}
}

// IsPost reports whether the record is a post.
func (p *PageRecord) IsPost() bool {
	return p.Kind == KindPost
}

// ComputeHash sets Hash to the SHA-256 of body. Empty bodies produce an empty hash.
func (p *PageRecord) ComputeHash(body []byte) {
	if len(body) == 0 {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256(body)
	p.Hash = hex.EncodeToString(hash[:])
}
