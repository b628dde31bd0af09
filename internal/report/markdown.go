package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeStatistics(md, summary)
	w.writeTaxonomy(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *RunSummary) {
	md.H1("Site Export Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Domain", "`" + s.Domain + "`"},
			{"Sitemap", s.SitemapURL},
			{"Export Directory", "`" + s.ExportDir + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration.Round(time.Millisecond).String()},
			{"Links Found", strconv.Itoa(s.Links)},
			{"Status", s.Status()},
		},
	})
	md.PlainText("")
}

// writeStatistics writes the counters, a content chart and an alert.
func (w *MarkdownWriter) writeStatistics(md *markdown.Markdown, s *RunSummary) {
	md.H2("Statistics")
	md.PlainText("")

	stats := statistics(s.Stats)
	rows := make([][]string, len(stats))
	for i, stat := range stats {
		rows[i] = []string{stat.label, stat.value}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Manifest != nil && s.Manifest.TotalPages()+len(s.Manifest.Content.Media) > 0 {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of the exported content.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Exported Content"),
		piechart.WithShowData(true),
	)

	content := s.Manifest.Content
	if n := len(content.Pages); n > 0 {
		chart.LabelAndIntValue("Pages", uint64(n))
	}
	if n := len(content.Posts); n > 0 {
		chart.LabelAndIntValue("Posts", uint64(n))
	}
	if n := len(content.Media); n > 0 {
		chart.LabelAndIntValue("Media", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the run outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *RunSummary) {
	switch {
	case !s.Complete():
		md.Cautionf("The export stopped early: %s. The mirror is incomplete.", s.Error)
	case s.Stats.Errors > 0:
		md.Warningf("%d error(s) occurred. See %s for details.", s.Stats.Errors, FileRunLog)
	case s.Stats.PagesProcessed == 0:
		md.Note("No page was exported. Pages already present in the export directory are skipped.")
	default:
		md.Tip("All pages were exported without errors.")
	}
	md.PlainText("")
}

// writeTaxonomy lists categories and tags.
func (w *MarkdownWriter) writeTaxonomy(md *markdown.Markdown, s *RunSummary) {
	if s.Manifest == nil {
		return
	}

	sections := []struct {
		title string
		terms []string
	}{
		{"Categories", s.Manifest.Content.Categories},
		{"Tags", s.Manifest.Content.Tags},
	}

	for _, section := range sections {
		md.H2(section.title)
		md.PlainText("")
		if len(section.terms) == 0 {
			md.PlainText("None.")
		} else {
			md.BulletList(section.terms...)
		}
		md.PlainText("")
	}
}

// writeFooter writes the summary footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Summary generated by sitemirror*")
}
