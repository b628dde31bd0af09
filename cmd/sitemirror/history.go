package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/mattn/go-runewidth"
	"github.com/nao1215/sitemirror/internal/log"
	"github.com/spf13/cobra"
)

// historyTimeLayout formats run start times.
const historyTimeLayout = "2006-01-02 15:04:05"

// domainColumnWidth is the display width of the domain column.
const domainColumnWidth = 24

// NewHistoryCmd creates the history command.
// This command lists export runs recorded in the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "List previous export runs",
		Long: `History lists the export runs recorded by 'sitemirror export'.

Each run is stored with its counters and with the pages it exported, so an
earlier export of a domain can be looked up after its folder is gone.

Examples:
  # List every recorded run
  sitemirror history

  # List the runs of one domain
  sitemirror history example.com

  # Show one run with its exported pages
  sitemirror history --run 3

  # Output in JSON format
  sitemirror history --json example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("run", "i", 0,
		"Show the run with this ID and its pages")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	var domain string
	if len(args) > 0 {
		domain = config.NormalizeDomain(args[0])
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Debug("opened history database", "path", db.Path(), "domain", domain, "run", runID)

	ctx := context.Background()
	out := cmd.OutOrStdout()

	if runID > 0 {
		return showRun(ctx, out, db, runID, jsonOutput)
	}
	return listRuns(ctx, out, db, domain, jsonOutput)
}

// listRuns prints the recorded runs, newest first.
func listRuns(ctx context.Context, w io.Writer, db *database.ExportDB, domain string, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, domain)
	if err != nil {
		return err
	}

	if jsonOutput {
		if runs == nil {
			runs = []database.RunRecord{}
		}
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		if domain == "" {
			fmt.Fprintln(w, "No export runs recorded")
		} else {
			fmt.Fprintf(w, "No export runs recorded for %s\n", domain)
		}
		return nil
	}

	fmt.Fprintf(w, "Export runs (%d):\n\n", len(runs))
	fmt.Fprintf(w, "  %-6s  %-19s  %s  %6s  %5s  %6s  %6s  %s\n",
		"ID", "Started", domainColumn("Domain"), "Pages", "Posts", "Assets", "Errors", "Status")
	for _, run := range runs {
		fmt.Fprintf(w, "  %-6d  %-19s  %s  %6d  %5d  %6d  %6d  %s\n",
			run.ID,
			run.StartedAt.Local().Format(historyTimeLayout),
			domainColumn(run.Domain),
			run.Stats.PagesProcessed,
			run.Stats.PostsFound,
			run.Stats.AssetsDownloaded,
			run.Stats.Errors,
			run.Status,
		)
	}
	return nil
}

// domainColumn pads or truncates domain to the domain column width.
// Internationalized domains may contain wide characters.
func domainColumn(domain string) string {
	return runewidth.FillRight(runewidth.Truncate(domain, domainColumnWidth, "..."), domainColumnWidth)
}

// runDetail is the JSON form of one run with its pages.
type runDetail struct {
	Run   *database.RunRecord  `json:"run"`
	Pages []database.PageEntry `json:"pages"`
}

// showRun prints one run and the pages it exported.
func showRun(ctx context.Context, w io.Writer, db *database.ExportDB, id int64, jsonOutput bool) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %d not found (use 'sitemirror history' to list runs)", id)
	}

	pages, err := db.RunPages(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput {
		if pages == nil {
			pages = []database.PageEntry{}
		}
		return writeJSON(w, runDetail{Run: run, Pages: pages})
	}

	fmt.Fprintf(w, "Run %d: %s\n\n", run.ID, run.Domain)
	fmt.Fprintf(w, "  Started:    %s\n", run.StartedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(w, "  Duration:   %s\n", run.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Sitemap:    %s\n", run.SitemapURL)
	fmt.Fprintf(w, "  Folder:     %s\n", run.ExportDir)
	fmt.Fprintf(w, "  Status:     %s\n", run.Status)
	fmt.Fprintf(w, "  Links:      %d\n", run.Links)
	fmt.Fprintf(w, "  Pages:      %d (%d posts)\n", run.Stats.PagesProcessed, run.Stats.PostsFound)
	fmt.Fprintf(w, "  Assets:     %d\n", run.Stats.AssetsDownloaded)
	fmt.Fprintf(w, "  Errors:     %d\n", run.Stats.Errors)

	if len(pages) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\nExported pages (%d):\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(w, "  [%s] %s", p.Kind, p.URL)
		if p.Title != "" {
			fmt.Fprintf(w, "  %s", p.Title)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
