package allowlist

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/site"
	"golang.org/x/sync/errgroup"
)

const (
	// RecordPrefix starts the name of the file listing the requested URLs.
	RecordPrefix = "downloaded_urls_"

	// RecordTimeLayout formats the timestamp in the record file name.
	RecordTimeLayout = "20060102_150405"

	defaultConcurrency = 4
)

// ReadList returns the non-empty, trimmed lines of the file at path.
// A missing file is reported with an error wrapping fs.ErrNotExist.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the user's configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open allow list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			urls = append(urls, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allow list: %w", err)
	}
	return urls, nil
}

// Downloader saves allow-listed URLs verbatim.
type Downloader struct {
	opener      fetch.Opener
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// WithConcurrency sets how many URLs are downloaded at once.
func WithConcurrency(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithClock sets the time source used for the record file name.
func WithClock(now func() time.Time) Option {
	return func(d *Downloader) {
		d.now = now
	}
}

// NewDownloader creates a Downloader.
func NewDownloader(opener fetch.Opener, opts ...Option) *Downloader {
	d := &Downloader{
		opener:      opener,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download saves every URL into root and writes the record file listing
// them. It returns how many URLs are saved, counting files kept from an
// earlier run, which are not downloaded again. Failures are logged and
// never stop the remaining downloads.
func (d *Downloader) Download(ctx context.Context, urls []string, root string) (int, error) {
	var saved atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, rawURL := range urls {
		if gctx.Err() != nil {
			break
		}
		dest := filepath.Join(root, FileName(rawURL, i+1))
		g.Go(func() error {
			if site.IsFile(dest) {
				d.logger.Debug("allow-listed file already present", "url", rawURL, "path", dest)
				saved.Add(1)
				return nil
			}
			d.logger.Info("downloading allow-listed url", "url", rawURL, "index", i+1, "total", len(urls))
			if err := d.save(gctx, rawURL, dest); err != nil {
				d.logger.Error("allow-listed download failed", "url", rawURL, "error", err)
				return nil
			}
			saved.Add(1)
			d.logger.Info("allow-listed url saved", "url", rawURL, "path", dest)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	record := filepath.Join(root, RecordPrefix+d.now().Format(RecordTimeLayout)+".txt")
	if err := writeRecord(record, urls); err != nil {
		return int(saved.Load()), err
	}

	d.logger.Info("allow list processed", "saved", saved.Load(), "total", len(urls), "record", record)
	return int(saved.Load()), ctx.Err()
}

func (d *Downloader) save(ctx context.Context, rawURL, dest string) error {
	resp, err := d.opener.Open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &fetch.StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return site.WriteFile(dest, resp.Body)
}

func writeRecord(path string, urls []string) error {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	return site.WriteFile(path, strings.NewReader(b.String()))
}

// FileName returns the name a URL is saved under: the last segment of its
// path, or url_<index>.txt when there is none.
func FileName(rawURL string, index int) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		p := u.Path
		if !strings.HasSuffix(p, "/") {
			name = path.Base(p)
		}
	}
	switch name {
	case "", ".", "..", "/":
		return fmt.Sprintf("url_%d.txt", index)
	default:
		return name
	}
}
