package model

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestPageRecordComputeHash(t *testing.T) {
	t.Parallel()

	t.Run("computes SHA256 hash of body", func(t *testing.T) {
		t.Parallel()

		rec := NewPageRecord("https://example.com/", KindPage)
		rec.ComputeHash([]byte("Hello, World!"))

		expected := "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"
		if rec.Hash != expected {
			t.Errorf("got %q, expected %q", rec.Hash, expected)
		}
	})

	t.Run("empty body produces empty hash", func(t *testing.T) {
		t.Parallel()

		rec := NewPageRecord("https://example.com/", KindPage)
		rec.ComputeHash(nil)

		if rec.Hash != "" {
			t.Errorf("expected empty hash, got %q", rec.Hash)
		}
	})
}

func TestNewPageRecord(t *testing.T) {
	t.Parallel()

	rec := NewPageRecord("https://example.com/hello/", KindPost)
	if !rec.IsPost() {
		t.Error("expected a post")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	out := string(data)
	for _, want := range []string{`"type":"post"`, `"categories":[]`, `"tags":[]`, `"meta":{}`, `"modified_date":""`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, `"hash"`) {
		t.Errorf("empty hash should be omitted: %s", out)
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want string
	}{
		{KindPage, "page"},
		{KindPost, "post"},
		{Kind(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("unknown name fails to decode", func(t *testing.T) {
		t.Parallel()
		var k Kind
		if err := json.Unmarshal([]byte(`"attachment"`), &k); err == nil {
			t.Error("expected error for unknown kind")
		}
	})

	t.Run("post decodes", func(t *testing.T) {
		t.Parallel()
		var k Kind
		if err := json.Unmarshal([]byte(`"post"`), &k); err != nil || k != KindPost {
			t.Errorf("expected post, got %v (%v)", k, err)
		}
	})
}

func TestMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"out/wp-content/uploads/2024/01/photo.JPG", "jpg"},
		{"out/wp-content/uploads/logo.png", "png"},
		{"out/wp-content/uploads/archive.tar.gz", "gz"},
		{"out/wp-content/uploads/noext", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			rec := NewAssetRecord("https://example.com/x", tt.path)
			if rec.Type != tt.want {
				t.Errorf("got %q, want %q", rec.Type, tt.want)
			}
		})
	}
}

func TestHasEXIF(t *testing.T) {
	t.Parallel()

	if !HasEXIF("jpeg") || !HasEXIF("tiff") {
		t.Error("expected jpeg and tiff to carry EXIF")
	}
	if HasEXIF("png") || HasEXIF("svg") {
		t.Error("expected png and svg not to carry EXIF")
	}
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	stats := NewStatistics()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stats.PageProcessed(i%5 == 0)
			stats.AssetDownloaded()
			if i%10 == 0 {
				stats.Error()
			}
		}(i)
	}
	wg.Wait()

	snap := stats.Snapshot(3, 7)
	if snap.PagesProcessed != 50 {
		t.Errorf("expected 50 pages, got %d", snap.PagesProcessed)
	}
	if snap.PostsFound != 10 {
		t.Errorf("expected 10 posts, got %d", snap.PostsFound)
	}
	if snap.AssetsDownloaded != 50 {
		t.Errorf("expected 50 assets, got %d", snap.AssetsDownloaded)
	}
	if snap.Errors != 5 || stats.Errors() != 5 {
		t.Errorf("expected 5 errors, got %d", snap.Errors)
	}
	if snap.CategoriesFound != 3 || snap.TagsFound != 7 {
		t.Errorf("unexpected taxonomy counts %d/%d", snap.CategoriesFound, snap.TagsFound)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{"pages_processed", "assets_downloaded", "errors", "posts_found", "categories_found", "tags_found"} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("expected key %s in %s", key, data)
		}
	}
}

func TestManifestTotalPages(t *testing.T) {
	t.Parallel()

	m := &Manifest{Content: Content{
		Pages: []PageRecord{NewPageRecord("a", KindPage)},
		Posts: []PageRecord{NewPageRecord("b", KindPost), NewPageRecord("c", KindPost)},
	}}
	if m.TotalPages() != 3 {
		t.Errorf("expected 3, got %d", m.TotalPages())
	}
}
