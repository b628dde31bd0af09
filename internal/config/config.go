package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemirror"

	// DefaultSitemapPath is appended to the target domain when no sitemap
	// URL is configured. WordPress (Yoast and core) serves its index here.
	DefaultSitemapPath = "/sitemap_index.xml"

	// DefaultTimeout bounds a single HTTP request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultWorkers is the number of pages processed concurrently.
	// The origin is one live server, so this stays small.
	DefaultWorkers = 4

	// DefaultRateLimit is the number of requests per second sent to one host.
	DefaultRateLimit = 5.0

	// DefaultBurst is the number of requests allowed to exceed the rate limit at once.
	DefaultBurst = 5

	// DefaultMaxRetries is the number of attempts for a transient failure
	// (connection error, 429 or 5xx) before giving up.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the wait before the second attempt.
	// It doubles after every failed attempt.
	DefaultRetryBackoff = 1 * time.Second

	// DefaultMaxBodySize limits the size of a fetched page or sitemap.
	// Assets are streamed to disk and are not subject to this limit.
	DefaultMaxBodySize = 20 * 1024 * 1024 // 20MB

	// DefaultUserAgent identifies the mirror in the origin's access logs.
	DefaultUserAgent = "sitemirror/1.0 (+https://github.com/nao1215/sitemirror)"

	// DefaultAllowListPath is the file listing extra URLs to save verbatim.
	DefaultAllowListPath = "allow-urls.txt"

	// ExportDirPrefix prefixes the timestamped default export directory.
	ExportDirPrefix = "exported_site_"

	// ExportDirTimeLayout formats the timestamp of the default export directory.
	ExportDirTimeLayout = "20060102_150405"
)

// Config holds all configuration options for one mirror run.
// It is populated from defaults, the config file, the environment and CLI
// flags (in that order) and passed down explicitly; nothing reads globals.
type Config struct {
	// TargetDomain is the host of the site being mirrored, e.g. "example.com".
	// Every URL kept during discovery and asset localization must have a
	// network location containing this string.
	TargetDomain string

	// SitemapURL is the sitemap (or sitemap index) used to seed discovery.
	// When empty, https://<TargetDomain>/sitemap_index.xml is used.
	SitemapURL string

	// ReplacementBase is the URL that replaces the target domain in the
	// mirrored documents, e.g. "http://localhost/".
	ReplacementBase string

	// ExportDir is the root directory of the mirror.
	// When empty, exported_site_<timestamp> in the working directory is used.
	ExportDir string

	// AllowListPath is a newline-delimited file of extra URLs that are saved
	// byte-for-byte without parsing or rewriting. A missing file is skipped.
	AllowListPath string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Workers is the number of concurrent page fetches during discovery and export.
	Workers int

	// RateLimit is the number of requests per second allowed per host.
	// Zero disables rate limiting.
	RateLimit float64

	// Burst is the token bucket size of the per-host limiter.
	Burst int

	// MaxRetries is the number of attempts for transient failures.
	MaxRetries int

	// RetryBackoff is the initial backoff between attempts.
	RetryBackoff time.Duration

	// MaxErrors aborts the run once this many page or asset errors have been
	// counted. Zero disables the threshold.
	MaxErrors int

	// MaxBodySize is the maximum number of bytes read from a page or sitemap.
	MaxBodySize int64

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// Headers are extra HTTP headers sent with every request to the target.
	Headers map[string]string

	// IgnorePatterns are glob patterns matched against URL paths.
	// Links matching any of them are neither followed nor exported.
	IgnorePatterns []string

	// Rediscover resolves the sitemap and crawls the site even when the
	// export root already holds the links of a finished discovery.
	Rediscover bool

	// Verbose enables debug level logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sitemirror is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// EnvFilePath is the dotenv file loaded before reading the environment.
	EnvFilePath string

	// DBDir is the directory of the SQLite run ledger.
	// Defaults to the XDG data directory (~/.local/share/sitemirror on Linux).
	DBDir string

	// SaveToDB records the run in the ledger after it completes.
	SaveToDB bool

	// MarkdownSummary writes export_summary.md into the export root.
	MarkdownSummary bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		AllowListPath:   DefaultAllowListPath,
		Timeout:         DefaultTimeout,
		Workers:         DefaultWorkers,
		RateLimit:       DefaultRateLimit,
		Burst:           DefaultBurst,
		MaxRetries:      DefaultMaxRetries,
		RetryBackoff:    DefaultRetryBackoff,
		MaxBodySize:     DefaultMaxBodySize,
		UserAgent:       DefaultUserAgent,
		EnvFilePath:     DefaultEnvFile,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
		MarkdownSummary: true,
	}
}

// XDGDataDir returns the XDG data directory for sitemirror.
// On Linux: ~/.local/share/sitemirror
// On macOS: ~/Library/Application Support/sitemirror
// On Windows: %LOCALAPPDATA%\sitemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitemirror.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultSitemapURL derives the sitemap index URL from a target domain.
func DefaultSitemapURL(domain string) string {
	return "https://" + strings.Trim(domain, "/") + DefaultSitemapPath
}

// DefaultExportDir returns the timestamped export directory name for a run
// started at now.
func DefaultExportDir(now time.Time) string {
	return ExportDirPrefix + now.Format(ExportDirTimeLayout)
}

// Finalize fills derived values that depend on other fields.
// It must be called after all sources have been applied and before Validate.
func (c *Config) Finalize(now time.Time) {
	c.TargetDomain = NormalizeDomain(c.TargetDomain)
	if c.SitemapURL == "" && c.TargetDomain != "" {
		c.SitemapURL = DefaultSitemapURL(c.TargetDomain)
	}
	if c.ExportDir == "" {
		c.ExportDir = DefaultExportDir(now)
	}
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if c.TargetDomain == "" {
		return ErrNoDomain
	}

	if c.ReplacementBase == "" {
		return ErrNoReplacement
	}

	u, err := url.Parse(c.SitemapURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSitemapURL, c.SitemapURL)
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.RateLimit < 0 || c.Burst < 0 {
		return ErrInvalidRateLimit
	}

	if c.MaxRetries <= 0 || c.RetryBackoff < 0 {
		return ErrInvalidRetries
	}

	if c.MaxErrors < 0 {
		return ErrInvalidMaxErrors
	}

	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}

	if c.ProxyAddress != "" {
		if _, _, err := net.SplitHostPort(c.ProxyAddress); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.ProxyAddress)
		}
	}

	return nil
}

// NormalizeDomain accepts "example.com", "https://example.com/" or
// "example.com/" and returns the bare host.
func NormalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	if strings.Contains(domain, "://") {
		if u, err := url.Parse(domain); err == nil && u.Host != "" {
			return u.Host
		}
	}
	return strings.Trim(domain, "/")
}
