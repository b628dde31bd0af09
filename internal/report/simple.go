package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SimpleWriter outputs a human-readable text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the taxonomy lists to the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *RunSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeStatistics(&sb, summary)
	if w.verbose {
		w.writeTaxonomy(&sb, summary)
	}
	w.writeFooter(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *RunSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          SITE EXPORT SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Domain:         %s\n", s.Domain)
	fmt.Fprintf(sb, "Sitemap:        %s\n", s.SitemapURL)
	fmt.Fprintf(sb, "Started:        %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:       %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(sb, "Links Found:    %d\n", s.Links)
	fmt.Fprintf(sb, "Status:         %s\n", s.Status())
	sb.WriteString("\n")
}

// writeStatistics writes the run counters.
func (w *SimpleWriter) writeStatistics(sb *strings.Builder, s *RunSummary) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("EXPORT STATISTICS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for _, stat := range statistics(s.Stats) {
		fmt.Fprintf(sb, "  %-20s %s\n", stat.label+":", stat.value)
	}
	sb.WriteString("\n")
}

// writeTaxonomy lists the categories and tags of the manifest.
func (w *SimpleWriter) writeTaxonomy(sb *strings.Builder, s *RunSummary) {
	if s.Manifest == nil {
		return
	}

	sections := []struct {
		title string
		terms []string
	}{
		{"CATEGORIES", s.Manifest.Content.Categories},
		{"TAGS", s.Manifest.Content.Tags},
	}

	for _, section := range sections {
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		sb.WriteString(section.title)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n\n")

		if len(section.terms) == 0 {
			sb.WriteString("  None\n")
		}
		for _, term := range section.terms {
			fmt.Fprintf(sb, "  [+] %s\n", term)
		}
		sb.WriteString("\n")
	}
}

// writeFooter writes where the files were saved.
func (w *SimpleWriter) writeFooter(sb *strings.Builder, s *RunSummary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Export completed! Files saved in: %s\n", s.ExportDir)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
