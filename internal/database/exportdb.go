package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemirror/internal/model"
)

// FileName is the database file created in the data directory.
const FileName = "sitemirror.db"

// timeLayout is how timestamps are stored.
const timeLayout = "2006-01-02 15:04:05"

// ExportDB stores export runs in SQLite.
type ExportDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ExportDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the ledger in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*ExportDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	edb := &ExportDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := edb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return edb, nil
}

// Path returns the database file path.
func (edb *ExportDB) Path() string {
	return edb.dbPath
}

// Close closes the database connection.
func (edb *ExportDB) Close() error {
	return edb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (edb *ExportDB) createTables() error {
	schema := `
	-- One row per export run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		sitemap_url TEXT NOT NULL,
		export_dir TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		links INTEGER NOT NULL DEFAULT 0,
		pages_processed INTEGER NOT NULL DEFAULT 0,
		posts_found INTEGER NOT NULL DEFAULT 0,
		assets_downloaded INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		categories_found INTEGER NOT NULL DEFAULT 0,
		tags_found INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Pages and posts exported by a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT,
		hash TEXT,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	-- Media downloaded by a run
	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		local_path TEXT NOT NULL,
		type TEXT
	);
	`

	_, err := edb.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is a stored export run.
type RunRecord struct {
	ID         int64               `json:"id"`
	Domain     string              `json:"domain"`
	SitemapURL string              `json:"sitemap_url"`
	ExportDir  string              `json:"export_dir"`
	StartedAt  time.Time           `json:"started_at"`
	Duration   time.Duration       `json:"duration_ns"`
	Status     string              `json:"status"`
	Links      int                 `json:"links"`
	Stats      model.RunStatistics `json:"statistics"`
}

// PageEntry is a page exported by a run.
type PageEntry struct {
	URL   string `json:"url"`
	Kind  string `json:"type"`
	Title string `json:"title"`
	Hash  string `json:"hash,omitempty"`
}

// SaveRun stores run together with the pages, posts and media of m in a
// single transaction and returns the new run ID. m may be nil.
func (edb *ExportDB) SaveRun(ctx context.Context, run *RunRecord, m *model.Manifest) (id int64, err error) {
	tx, err := edb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is more useful
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (domain, sitemap_url, export_dir, started_at, duration_ms, status, links,
		pages_processed, posts_found, assets_downloaded, errors, categories_found, tags_found)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Domain,
		run.SitemapURL,
		run.ExportDir,
		run.StartedAt.UTC().Format(timeLayout),
		run.Duration.Milliseconds(),
		run.Status,
		run.Links,
		run.Stats.PagesProcessed,
		run.Stats.PostsFound,
		run.Stats.AssetsDownloaded,
		run.Stats.Errors,
		run.Stats.CategoriesFound,
		run.Stats.TagsFound,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	if m != nil {
		if err = insertPages(ctx, tx, id, m); err != nil {
			return 0, err
		}
		if err = insertAssets(ctx, tx, id, m.Content.Media); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = id
	return id, nil
}

func insertPages(ctx context.Context, tx *sql.Tx, runID int64, m *model.Manifest) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO pages (run_id, url, kind, title, hash) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, records := range [][]model.PageRecord{m.Content.Pages, m.Content.Posts} {
		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, runID, rec.URL, rec.Kind.String(), rec.Title, rec.Hash); err != nil {
				return fmt.Errorf("failed to save page %s: %w", rec.URL, err)
			}
		}
	}
	return nil
}

func insertAssets(ctx context.Context, tx *sql.Tx, runID int64, media []model.AssetRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO assets (run_id, url, local_path, type) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare asset insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range media {
		if _, err := stmt.ExecContext(ctx, runID, rec.URL, rec.LocalPath, rec.Type); err != nil {
			return fmt.Errorf("failed to save asset %s: %w", rec.URL, err)
		}
	}
	return nil
}

const runColumns = `id, domain, sitemap_url, export_dir, started_at, duration_ms, status, links,
	pages_processed, posts_found, assets_downloaded, errors, categories_found, tags_found`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run        RunRecord
		startedAt  string
		durationMS int64
	)
	err := row.Scan(
		&run.ID,
		&run.Domain,
		&run.SitemapURL,
		&run.ExportDir,
		&startedAt,
		&durationMS,
		&run.Status,
		&run.Links,
		&run.Stats.PagesProcessed,
		&run.Stats.PostsFound,
		&run.Stats.AssetsDownloaded,
		&run.Stats.Errors,
		&run.Stats.CategoriesFound,
		&run.Stats.TagsFound,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = parseTimestamp(startedAt)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

// ListRuns returns the runs of domain, newest first.
// An empty domain lists every run.
func (edb *ExportDB) ListRuns(ctx context.Context, domain string) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY started_at DESC, id DESC`

	rows, err := edb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or nil when there is none.
func (edb *ExportDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := edb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// RunPages returns the pages exported by a run, ordered by URL.
func (edb *ExportDB) RunPages(ctx context.Context, runID int64) ([]PageEntry, error) {
	rows, err := edb.db.QueryContext(ctx, `
	SELECT url, kind, COALESCE(title, ''), COALESCE(hash, '')
	FROM pages
	WHERE run_id = ?
	ORDER BY url
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []PageEntry
	for rows.Next() {
		var p PageEntry
		if err := rows.Scan(&p.URL, &p.Kind, &p.Title, &p.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,                // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
