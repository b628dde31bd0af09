package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sitemirror/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Artifact file names inside the export root.
const (
	FileManifest   = "wordpress_export.json"
	FileStatistics = "export_statistics.json"
	FileLinksText  = "all_internal_links.txt"
	FileLinksJSON  = "all_internal_links.json"
	FileLinkedText = "linked_files.txt"
	FileSummary    = "export_summary.md"
	FileRunLog     = "wordpress_export.log"
)

// RunSummary describes a finished run.
type RunSummary struct {
	// Domain is the mirrored domain.
	Domain string `json:"domain"`

	// SitemapURL is the sitemap the run started from.
	SitemapURL string `json:"sitemap_url"`

	// ExportDir is the export root.
	ExportDir string `json:"export_dir"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration_ns"`

	// Links is the number of discovered URLs.
	Links int `json:"links"`

	// Stats are the run counters.
	Stats model.RunStatistics `json:"statistics"`

	// Manifest is the exported content. It may be nil.
	Manifest *model.Manifest `json:"-"`

	// Error describes why the run stopped early, if it did.
	Error string `json:"error,omitempty"`
}

// Complete reports whether the run processed every page.
func (s *RunSummary) Complete() bool {
	return s.Error == ""
}

// Writer defines the interface for summary output.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *RunSummary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(summary *RunSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for summary writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statistic is one labelled counter.
type statistic struct {
	label string
	value string
}

// statistics returns the counters in display order, labelled from their
// JSON keys ("pages_processed" becomes "Pages Processed").
func statistics(s model.RunStatistics) []statistic {
	caser := cases.Title(language.English)
	label := func(key string) string {
		return caser.String(strings.ReplaceAll(key, "_", " "))
	}

	return []statistic{
		{label("pages_processed"), strconv.FormatInt(s.PagesProcessed, 10)},
		{label("posts_found"), strconv.FormatInt(s.PostsFound, 10)},
		{label("categories_found"), strconv.FormatInt(s.CategoriesFound, 10)},
		{label("tags_found"), strconv.FormatInt(s.TagsFound, 10)},
		{label("assets_downloaded"), strconv.FormatInt(s.AssetsDownloaded, 10)},
		{label("errors"), strconv.FormatInt(s.Errors, 10)},
	}
}

// Status returns the one-line run status.
func (s *RunSummary) Status() string {
	if !s.Complete() {
		return "Aborted - " + s.Error
	}
	if s.Stats.Errors > 0 {
		return "Complete with errors"
	}
	return "Complete"
}
