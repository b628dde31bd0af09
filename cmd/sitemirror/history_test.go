package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/model"
)

// seedHistory creates a database with two runs of example.com and one of
// other.example, and returns its directory and the first run ID.
func seedHistory(t *testing.T) (string, int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	post := model.NewPageRecord("https://example.com/hello/", model.KindPost)
	post.Title = "Hello"
	m := &model.Manifest{Content: model.Content{Posts: []model.PageRecord{post}}}

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var first int64
	for i, domain := range []string{"example.com", "example.com", "other.example"} {
		id, err := db.SaveRun(context.Background(), &database.RunRecord{
			Domain:     domain,
			SitemapURL: "https://" + domain + "/sitemap_index.xml",
			ExportDir:  "/tmp/export",
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			Status:     "Complete",
			Stats:      model.RunStatistics{PagesProcessed: 1, PostsFound: 1},
		}, m)
		if err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
		if i == 0 {
			first = id
		}
	}
	return dir, first
}

func runHistory(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewHistoryCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	// Subtests share one database file and run sequentially.
	dir, firstID := seedHistory(t)

	t.Run("lists every run", func(t *testing.T) {
		out, err := runHistory(t, "--db-dir", dir)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(out, "Export runs (3)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("filters by domain given as URL", func(t *testing.T) {
		out, err := runHistory(t, "--db-dir", dir, "https://example.com/")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(out, "Export runs (2)") || strings.Contains(out, "other.example") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("no runs for domain", func(t *testing.T) {
		out, err := runHistory(t, "--db-dir", dir, "missing.example")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(out, "No export runs recorded for missing.example") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("json list", func(t *testing.T) {
		out, err := runHistory(t, "--db-dir", dir, "--json", "other.example")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		var runs []database.RunRecord
		if err := json.Unmarshal([]byte(out), &runs); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out)
		}
		if len(runs) != 1 || runs[0].Domain != "other.example" {
			t.Errorf("unexpected runs: %+v", runs)
		}
	})

	t.Run("shows one run with pages", func(t *testing.T) {
		out, err := runHistory(t, "--db-dir", dir, "--run", strconv.FormatInt(firstID, 10))
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		for _, want := range []string{"example.com", "Exported pages (1)", "[post] https://example.com/hello/", "Hello"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := runHistory(t, "--db-dir", dir, "--run", "999")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

// TestDomainColumn tests that domains are padded to a fixed display width.
func TestDomainColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		domain string
		prefix string
	}{
		{name: "ascii", domain: "example.com", prefix: "example.com"},
		{name: "wide characters", domain: "例え.テスト", prefix: "例え.テスト"},
		{name: "truncated", domain: "a-very-long-subdomain.example.com", prefix: "a-very-long-subdomain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := domainColumn(tt.domain)
			if w := runewidth.StringWidth(got); w != domainColumnWidth {
				t.Errorf("width = %d, want %d (%q)", w, domainColumnWidth, got)
			}
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("domainColumn(%q) = %q, want prefix %q", tt.domain, got, tt.prefix)
			}
		})
	}
}
