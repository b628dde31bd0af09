package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/mirror"
	"github.com/nao1215/sitemirror/internal/report"
	"github.com/spf13/cobra"
)

// Summary output formats.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [domain]",
		Short: "Mirror a WordPress site into a local folder",
		Long: `Export mirrors a WordPress site into a local folder.

The sitemap (by default https://<domain>/sitemap_index.xml) seeds a crawl of
every internal link. Each page is saved as <path>/index.html together with
its stylesheets, scripts and images, and every reference to the domain is
rewritten to the replacement base URL.

The export folder also receives:
- wordpress_export.json     posts, pages, categories, tags and media
- export_statistics.json    run counters
- all_internal_links.txt    every discovered page (also as .json)
- linked_files.txt          linked documents that are not pages (images, PDFs)
- export_summary.md         a readable summary of the run
- wordpress_export.log      the full run log

Settings are read from defaults, the .sitemirror file, the environment
(TARGET_DOMAIN, SITEMAP_URL, URL_TO_REPLACE, EXPORT_DIR, ALLOW_URLS_FILE,
also from a .env file) and flags, each overriding the previous one.

Examples:
  # Mirror example.com for serving from localhost
  sitemirror export example.com --replace-with http://localhost/

  # Resume an interrupted export
  sitemirror export example.com -r http://localhost/ -o exported_site_20250101_120000

  # Refresh an existing export with newly published posts
  sitemirror export example.com -r http://localhost/ -o mirror --rediscover

  # Be gentle with a slow origin
  sitemirror export example.com -r http://localhost/ --workers 1 --rate-limit 1

  # Print the summary as JSON
  sitemirror export example.com -r http://localhost/ --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExportCmd,
	}

	// Target flags
	cmd.Flags().StringP("domain", "d", "",
		"Domain to mirror (same as the positional argument)")
	cmd.Flags().StringP("sitemap", "s", "",
		"Sitemap URL (default: https://<domain>/sitemap_index.xml)")
	cmd.Flags().StringP("replace-with", "r", "",
		"Base URL that replaces the domain in exported documents")
	cmd.Flags().StringP("output", "o", "",
		"Export folder (default: exported_site_<timestamp>)")
	cmd.Flags().String("allow-list", config.DefaultAllowListPath,
		"File of extra URLs saved verbatim, one per line")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path patterns that are neither followed nor exported (e.g. /wp-admin/*)")
	cmd.Flags().Bool("rediscover", false,
		"Crawl the site again instead of reusing the links of a finished export")

	// Request behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of pages processed concurrently")
	cmd.Flags().Float64("rate-limit", config.DefaultRateLimit,
		"Requests per second per host (0 disables the limit)")
	cmd.Flags().Int("burst", config.DefaultBurst,
		"Requests allowed above the rate limit at once")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int("retries", config.DefaultMaxRetries,
		"Attempts for connection errors, 429 and 5xx responses")
	cmd.Flags().Int("max-errors", 0,
		"Abort after this many failed pages or assets (0 never aborts)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port)")

	// Configuration sources
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitemirror in current or home directory)")
	cmd.Flags().String("env-file", config.DefaultEnvFile,
		"dotenv file read before the environment")

	// Output flags
	cmd.Flags().StringP("format", "f", formatText,
		"Summary format printed on completion: text, json or markdown")
	cmd.Flags().Bool("no-summary", false,
		"Do not write export_summary.md into the export folder")
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, time.Now())
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if !validFormat(format) {
		return fmt.Errorf("unknown format %q (use text, json or markdown)", format)
	}

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "received shutdown signal, finishing current work...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runExport(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, format)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from defaults, the config file, the
// environment and the flags that were set, in that order.
func buildConfig(cmd *cobra.Command, args []string, now time.Time) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently continue without a file.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.EnvFilePath, err = flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	lookup, err := config.EnvLookup(cfg.EnvFilePath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.TargetDomain = args[0]
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Finalize(now)

	return cfg, nil
}

// applyFlags copies the flags the user set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"domain":       &cfg.TargetDomain,
		"sitemap":      &cfg.SitemapURL,
		"replace-with": &cfg.ReplacementBase,
		"output":       &cfg.ExportDir,
		"allow-list":   &cfg.AllowListPath,
		"user-agent":   &cfg.UserAgent,
		"proxy":        &cfg.ProxyAddress,
		"db-dir":       &cfg.DBDir,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	intFlags := map[string]*int{
		"workers":    &cfg.Workers,
		"burst":      &cfg.Burst,
		"retries":    &cfg.MaxRetries,
		"max-errors": &cfg.MaxErrors,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if flags.Changed("rate-limit") {
		v, err := flags.GetFloat64("rate-limit")
		if err != nil {
			return err
		}
		cfg.RateLimit = v
	}

	if flags.Changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = v
	}

	if flags.Changed("ignore") {
		v, err := flags.GetStringSlice("ignore")
		if err != nil {
			return err
		}
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, v...)
	}

	noSummary, err := flags.GetBool("no-summary")
	if err != nil {
		return err
	}
	cfg.MarkdownSummary = !noSummary

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB

	rediscover, err := flags.GetBool("rediscover")
	if err != nil {
		return err
	}
	cfg.Rediscover = rediscover

	return nil
}

// validFormat reports whether format names a summary format.
func validFormat(format string) bool {
	switch format {
	case formatText, formatJSON, formatMarkdown:
		return true
	default:
		return false
	}
}

// runExport mirrors the site and reports the result. A partial export is
// still summarized and recorded before the run error is returned.
func runExport(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, format string) error {
	fmt.Fprintf(stdout, "Exporting %s into %s...\n", cfg.TargetDomain, cfg.ExportDir)

	runner := mirror.NewRunner(cfg, mirror.WithConsole(stderr))
	result, runErr := runner.Run(ctx)
	if result == nil {
		return runErr
	}
	summary := result.Summary(runErr)

	var errs []error
	if err := outputSummary(stdout, format, summary, cfg.Verbose); err != nil {
		errs = append(errs, fmt.Errorf("failed to print summary: %w", err))
	}

	if cfg.MarkdownSummary {
		if err := writeMarkdownSummary(filepath.Join(cfg.ExportDir, report.FileSummary), summary); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.SaveToDB {
		// Record interrupted runs too.
		if err := saveRun(context.WithoutCancel(ctx), cfg.DBDir, summary); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(append([]error{runErr}, errs...)...)
}

// outputSummary prints the summary in the requested format.
func outputSummary(w io.Writer, format string, summary *report.RunSummary, verbose bool) error {
	var writer report.Writer
	switch format {
	case formatJSON:
		writer = report.NewJSONWriter(w, report.WithPrettyPrint())
	case formatMarkdown:
		writer = report.NewMarkdownWriter(w)
	default:
		writer = report.NewSimpleWriter(w, report.WithVerbose(verbose))
	}
	_, err := writer.Write(summary)
	return err
}

// writeMarkdownSummary writes export_summary.md.
func writeMarkdownSummary(path string, summary *report.RunSummary) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path is inside the export root
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer f.Close()

	if _, err := report.NewMarkdownWriter(f).Write(summary); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// saveRun records the run in the history database.
func saveRun(ctx context.Context, dbDir string, summary *report.RunSummary) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	run := &database.RunRecord{
		Domain:     summary.Domain,
		SitemapURL: summary.SitemapURL,
		ExportDir:  absPath(summary.ExportDir),
		StartedAt:  summary.StartedAt,
		Duration:   summary.Duration,
		Status:     summary.Status(),
		Links:      summary.Links,
		Stats:      summary.Stats,
	}
	if _, err := db.SaveRun(ctx, run, summary.Manifest); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// absPath returns path made absolute, or path itself when that fails.
func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
