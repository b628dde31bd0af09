package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/site"
)

func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("resolves and filters anchors", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/about/">About</a>
			<a href="child/">Relative</a>
			<a href="https://example.com/contact/#form">Fragment on other page</a>
			<a href="https://blog.example.com/">Subdomain</a>
			<a href="https://other.org/">External</a>
			<a href="#top">Same page</a>
			<a href="">Empty</a>
			<a>No href</a>
			<a href="JavaScript:void(0)">Script</a>
			<a href="mailto:info@example.com">Mail</a>
			<a href="/about/">About again</a>
		</body></html>`

		parser, err := NewParser("https://example.com/page/", "example.com")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		wantInternal := []string{
			"https://example.com/about/",
			"https://example.com/page/child/",
			"https://example.com/contact/",
			"https://blog.example.com/",
		}
		if !slices.Equal(result.InternalLinks, wantInternal) {
			t.Errorf("internal links = %v, want %v", result.InternalLinks, wantInternal)
		}
	})

	t.Run("invalid base URL returns error", func(t *testing.T) {
		t.Parallel()
		if _, err := NewParser("http://%zz", "example.com"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/wp-admin/*", "/wp-admin/post.php", true},
		{"/wp-admin/*", "/wp-admin", true},
		{"/wp-admin/*", "/wp-admins/", false},
		{"*.pdf", "/wp-content/uploads/file.pdf", true},
		{"*.pdf", "/file.pdf.html", false},
		{"/page/?/", "/page/2/", true},
		{"/feed/", "/feed/", true},
		{"[", "/anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// testSite serves a small link graph and counts requests per path.
type testSite struct {
	server *httptest.Server
	domain site.Domain

	mu   sync.Mutex
	hits map[string]int
}

func newTestSite(t *testing.T, pages map[string]string) *testSite {
	t.Helper()

	ts := &testSite{hits: make(map[string]int)}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.hits[r.URL.Path]++
		ts.mu.Unlock()

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(body, "STATUS500") {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(strings.TrimPrefix(body, "STATUS500")))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.server.Close)

	u, _ := url.Parse(ts.server.URL)
	ts.domain = site.Domain(u.Host)
	return ts
}

func (ts *testSite) url(path string) string {
	return ts.server.URL + path
}

func (ts *testSite) hitCount(path string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.hits[path]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDiscoverer(ts *testSite, opts ...Option) *Discoverer {
	client := fetch.NewClient(fetch.WithRetry(1, time.Millisecond))
	base := []Option{WithLogger(quietLogger()), WithConcurrency(4)}
	return NewDiscoverer(client, ts.domain, append(base, opts...)...)
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("follows links through cycles and fetches each page once", func(t *testing.T) {
		t.Parallel()
		ts := newTestSite(t, map[string]string{
			"/":   `<a href="/a/">a</a><a href="/b/">b</a>`,
			"/a/": `<a href="/">home</a><a href="/c/">c</a><a href="/a/#top">self</a>`,
			"/b/": `<a href="/c/">c</a><a href="/a/">a</a>`,
			"/c/": `<a href="/">home</a><a href="https://other.org/x/">external</a>`,
		})

		urls, err := newTestDiscoverer(ts).Discover(t.Context(), []string{ts.url("/")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{ts.url("/"), ts.url("/a/"), ts.url("/b/"), ts.url("/c/")}
		if !slices.Equal(urls, want) {
			t.Errorf("got %v, want %v", urls, want)
		}
		for _, path := range []string{"/", "/a/", "/b/", "/c/"} {
			if n := ts.hitCount(path); n != 1 {
				t.Errorf("%s fetched %d times", path, n)
			}
		}
	})

	t.Run("every discovered URL is inside the target domain", func(t *testing.T) {
		t.Parallel()
		ts := newTestSite(t, map[string]string{
			"/": `<a href="https://other.org/">x</a><a href="//cdn.other.org/y">y</a><a href="/z/">z</a>`,
		})

		urls, _ := newTestDiscoverer(ts).Discover(t.Context(), []string{ts.url("/"), "https://other.org/seed/"})
		for _, u := range urls {
			if !ts.domain.Contains(u) {
				t.Errorf("URL outside target domain: %s", u)
			}
		}
		if len(urls) != 2 {
			t.Errorf("expected 2 URLs, got %v", urls)
		}
	})

	t.Run("failed pages are kept but not expanded", func(t *testing.T) {
		t.Parallel()
		ts := newTestSite(t, map[string]string{
			"/":        `<a href="/broken/">broken</a><a href="/gone/">gone</a>`,
			"/broken/": `STATUS500<a href="/hidden/">hidden</a>`,
		})

		urls, err := newTestDiscoverer(ts).Discover(t.Context(), []string{ts.url("/")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if slices.Contains(urls, ts.url("/hidden/")) {
			t.Error("links of a failed page must not be discovered")
		}
		if !slices.Contains(urls, ts.url("/broken/")) || !slices.Contains(urls, ts.url("/gone/")) {
			t.Errorf("failed pages should stay in the result: %v", urls)
		}
		if ts.hitCount("/broken/") != 1 {
			t.Errorf("failed page must not be retried, got %d fetches", ts.hitCount("/broken/"))
		}
	})

	t.Run("seeds are returned even when unreachable", func(t *testing.T) {
		t.Parallel()
		ts := newTestSite(t, map[string]string{})

		d := newTestDiscoverer(ts)
		urls, err := d.Discover(t.Context(), []string{ts.url("/missing/")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(urls) != 1 {
			t.Errorf("expected the seed, got %v", urls)
		}
		if d.Stats().Failures != 1 {
			t.Errorf("expected 1 failure, got %d", d.Stats().Failures)
		}
	})

	t.Run("ignore patterns skip links", func(t *testing.T) {
		t.Parallel()
		ts := newTestSite(t, map[string]string{
			"/": `<a href="/wp-admin/">admin</a><a href="/feed/">feed</a><a href="/ok/">ok</a>`,
		})

		urls, _ := newTestDiscoverer(ts, WithIgnorePatterns([]string{"/wp-admin/*", "/feed/*"})).
			Discover(t.Context(), []string{ts.url("/")})
		want := []string{ts.url("/"), ts.url("/ok/")}
		if !slices.Equal(urls, want) {
			t.Errorf("got %v, want %v", urls, want)
		}
		if ts.hitCount("/wp-admin/") != 0 {
			t.Error("ignored page was fetched")
		}
	})

	t.Run("max pages bounds fetching", func(t *testing.T) {
		t.Parallel()
		ts := newTestSite(t, map[string]string{
			"/":   `<a href="/a/">a</a>`,
			"/a/": `<a href="/b/">b</a>`,
			"/b/": `<a href="/c/">c</a>`,
		})

		d := newTestDiscoverer(ts, WithMaxPages(2))
		urls, _ := d.Discover(t.Context(), []string{ts.url("/")})
		if d.Stats().PagesFetched != 2 {
			t.Errorf("expected 2 fetches, got %d", d.Stats().PagesFetched)
		}
		if !slices.Contains(urls, ts.url("/b/")) || slices.Contains(urls, ts.url("/c/")) {
			t.Errorf("unexpected URLs %v", urls)
		}
	})

	t.Run("non HTML pages are not parsed", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte(`<a href="/from-pdf/">x</a>`))
		}))
		defer server.Close()
		u, _ := url.Parse(server.URL)

		d := NewDiscoverer(fetch.NewClient(fetch.WithRetry(1, 0)), site.Domain(u.Host), WithLogger(quietLogger()))
		urls, _ := d.Discover(t.Context(), []string{server.URL + "/file.pdf"})
		if len(urls) != 0 {
			t.Errorf("expected no pages, got %v", urls)
		}
		if files := d.Files(); !slices.Equal(files, []string{server.URL + "/file.pdf"}) {
			t.Errorf("expected the seed as a file, got %v", files)
		}
	})

	t.Run("linked media is reported as a file", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<a href="/wp-content/uploads/photo.jpg"><img src="/wp-content/uploads/photo-150x150.jpg"></a>`))
		})
		mux.HandleFunc("/wp-content/uploads/photo.jpg", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xd9})
		})
		server := httptest.NewServer(mux)
		defer server.Close()
		u, _ := url.Parse(server.URL)

		d := NewDiscoverer(fetch.NewClient(fetch.WithRetry(1, 0)), site.Domain(u.Host),
			WithLogger(quietLogger()), WithConcurrency(4))
		urls, err := d.Discover(t.Context(), []string{server.URL + "/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		photo := server.URL + "/wp-content/uploads/photo.jpg"
		if !slices.Equal(urls, []string{server.URL + "/"}) {
			t.Errorf("pages = %v, want only the home page", urls)
		}
		if !slices.Equal(d.Files(), []string{photo}) {
			t.Errorf("files = %v, want %v", d.Files(), []string{photo})
		}
	})

	t.Run("links of a redirected page resolve against the final URL", func(t *testing.T) {
		t.Parallel()
		mux := http.NewServeMux()
		mux.HandleFunc("/old/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/2024/new/", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/2024/new/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<a href="part-2/">next</a>`))
		})
		server := httptest.NewServer(mux)
		defer server.Close()
		u, _ := url.Parse(server.URL)

		d := NewDiscoverer(fetch.NewClient(fetch.WithRetry(1, 0)), site.Domain(u.Host), WithLogger(quietLogger()))
		urls, _ := d.Discover(t.Context(), []string{server.URL + "/old/"})
		if !slices.Contains(urls, server.URL+"/2024/new/part-2/") {
			t.Errorf("expected link resolved against the final URL, got %v", urls)
		}
		if slices.Contains(urls, server.URL+"/old/part-2/") {
			t.Errorf("link resolved against the requested URL: %v", urls)
		}
	})

	t.Run("cancelled context returns partial result", func(t *testing.T) {
		t.Parallel()
		ts := newTestSite(t, map[string]string{"/": `<a href="/a/">a</a>`})

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		urls, err := newTestDiscoverer(ts).Discover(ctx, []string{ts.url("/")})
		if err == nil {
			t.Error("expected context error")
		}
		if len(urls) != 1 {
			t.Errorf("expected the seed only, got %v", urls)
		}
	})
}
