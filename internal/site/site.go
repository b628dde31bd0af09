package site

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// IndexFile is the document written for every mirrored page.
const IndexFile = "index.html"

// Domain is the host of the mirrored site, e.g. "example.com".
type Domain string

// String returns the domain as a string.
func (d Domain) String() string {
	return string(d)
}

// Contains reports whether the network location of rawURL contains the
// domain. Subdomains and ports therefore match ("cdn.example.com",
// "example.com:8080"). Unparsable URLs never match.
func (d Domain) Contains(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return d.ContainsURL(u)
}

// ContainsURL is Contains for a parsed URL.
func (d Domain) ContainsURL(u *url.URL) bool {
	if d == "" || u == nil || u.Host == "" {
		return false
	}
	return strings.Contains(strings.ToLower(u.Host), strings.ToLower(string(d)))
}

// Resolve resolves ref against base and drops the fragment.
// It reports false for empty or unparsable references.
func Resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// cleanPath returns the URL path without leading and trailing slashes,
// with dot segments removed so the result never leaves the export root.
func cleanPath(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

// PageDir returns the directory that holds the mirrored copy of rawURL.
// The root path maps to root itself. The query string is ignored.
func PageDir(root, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", rawURL, err)
	}
	rel := cleanPath(u.Path)
	if rel == "" {
		return root, nil
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// PageFile returns the index.html path of the mirrored copy of rawURL.
func PageFile(root, rawURL string) (string, error) {
	dir, err := PageDir(root, rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, IndexFile), nil
}

// AssetPath maps an asset URL to its file under root and to the escaped
// path used when referencing it from a mirrored document.
// Directory-style URLs get an index.html file name.
func AssetPath(root, rawURL string) (file, ref string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid asset URL %q: %w", rawURL, err)
	}
	rel := cleanPath(u.Path)
	if rel == "" || strings.HasSuffix(u.Path, "/") {
		rel = path.Join(rel, IndexFile)
	}
	ref = strings.TrimPrefix((&url.URL{Path: "/" + rel}).EscapedPath(), "/")
	return filepath.Join(root, filepath.FromSlash(rel)), ref, nil
}

// JoinBase prefixes a mirror-relative reference with the replacement base,
// putting exactly one slash between them.
func JoinBase(base, ref string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}
