package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig documents the default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Workers is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.Workers != 4 {
			t.Errorf("expected Workers to be 4, got %d", cfg.Workers)
		}
	})

	t.Run("default retry policy is 3 attempts from 1s", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxRetries != 3 || cfg.RetryBackoff != time.Second {
			t.Errorf("expected 3 attempts from 1s, got %d from %v", cfg.MaxRetries, cfg.RetryBackoff)
		}
	})

	t.Run("error threshold is disabled", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxErrors != 0 {
			t.Errorf("expected MaxErrors to be 0, got %d", cfg.MaxErrors)
		}
	})

	t.Run("default allow list is allow-urls.txt", func(t *testing.T) {
		t.Parallel()
		if cfg.AllowListPath != "allow-urls.txt" {
			t.Errorf("expected allow-urls.txt, got %q", cfg.AllowListPath)
		}
	})
}

func TestConfigFinalize(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	t.Run("derives sitemap URL and export dir", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.TargetDomain = "example.com"
		cfg.Finalize(now)

		if cfg.SitemapURL != "https://example.com/sitemap_index.xml" {
			t.Errorf("unexpected sitemap URL %q", cfg.SitemapURL)
		}
		if cfg.ExportDir != "exported_site_20240309_140507" {
			t.Errorf("unexpected export dir %q", cfg.ExportDir)
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.TargetDomain = "example.com"
		cfg.SitemapURL = "https://example.com/wp-sitemap.xml"
		cfg.ExportDir = "out"
		cfg.Finalize(now)

		if cfg.SitemapURL != "https://example.com/wp-sitemap.xml" || cfg.ExportDir != "out" {
			t.Errorf("explicit values overwritten: %q %q", cfg.SitemapURL, cfg.ExportDir)
		}
	})

	t.Run("normalizes domain given as URL", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.TargetDomain = "https://example.com/"
		cfg.Finalize(now)

		if cfg.TargetDomain != "example.com" {
			t.Errorf("expected example.com, got %q", cfg.TargetDomain)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.TargetDomain = "example.com"
		cfg.ReplacementBase = "http://localhost/"
		cfg.Finalize(time.Now())
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing domain", func(c *Config) { c.TargetDomain = "" }, ErrNoDomain},
		{"missing replacement", func(c *Config) { c.ReplacementBase = "" }, ErrNoReplacement},
		{"relative sitemap", func(c *Config) { c.SitemapURL = "/sitemap.xml" }, ErrInvalidSitemapURL},
		{"ftp sitemap", func(c *Config) { c.SitemapURL = "ftp://example.com/sitemap.xml" }, ErrInvalidSitemapURL},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"zero workers", func(c *Config) { c.Workers = 0 }, ErrInvalidWorkers},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, ErrInvalidRateLimit},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, ErrInvalidRetries},
		{"negative max errors", func(c *Config) { c.MaxErrors = -1 }, ErrInvalidMaxErrors},
		{"zero body size", func(c *Config) { c.MaxBodySize = 0 }, ErrInvalidMaxBodySize},
		{"proxy without port", func(c *Config) { c.ProxyAddress = "localhost" }, ErrInvalidProxyAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Headers:        map[string]string{"X-Mirror": "1"},
			IgnorePatterns: []string{"/wp-admin/*"},
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				Cookie:  "wp_consent=1",
				Headers: map[string]string{"X-Site": "example"},
			},
		},
	}

	t.Run("unknown domain gets defaults", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("other.com")
		if sc.Cookie != "" || sc.Headers["X-Mirror"] != "1" {
			t.Errorf("unexpected site config %+v", sc)
		}
	})

	t.Run("site entry merges over defaults", func(t *testing.T) {
		t.Parallel()
		sc := cf.GetSiteConfig("example.com")
		if sc.Cookie != "wp_consent=1" {
			t.Errorf("expected cookie, got %q", sc.Cookie)
		}
		if sc.Headers["X-Mirror"] != "1" || sc.Headers["X-Site"] != "example" {
			t.Errorf("expected merged headers, got %v", sc.Headers)
		}
		if len(sc.IgnorePatterns) != 1 {
			t.Errorf("expected default ignore patterns, got %v", sc.IgnorePatterns)
		}
	})

	t.Run("merging does not modify defaults", func(t *testing.T) {
		t.Parallel()
		_ = cf.GetSiteConfig("example.com")
		if _, ok := cf.Defaults.Headers["X-Site"]; ok {
			t.Error("defaults were mutated")
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("domain: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid yaml")
		}
	})

	t.Run("applies values onto config", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `domain: example.com
replacement: http://localhost/
workers: 8
timeout: 45s
defaults:
  ignorePatterns:
    - /feed/*
sites:
  example.com:
    cookie: a=b
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := NewConfig()
		cf.Apply(cfg)

		if cfg.TargetDomain != "example.com" || cfg.ReplacementBase != "http://localhost/" {
			t.Errorf("unexpected target settings: %q %q", cfg.TargetDomain, cfg.ReplacementBase)
		}
		if cfg.Workers != 8 {
			t.Errorf("expected 8 workers, got %d", cfg.Workers)
		}
		if cfg.Timeout != 45*time.Second {
			t.Errorf("expected 45s timeout, got %v", cfg.Timeout)
		}
		if cfg.Headers["Cookie"] != "a=b" {
			t.Errorf("expected cookie header, got %v", cfg.Headers)
		}
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/feed/*" {
			t.Errorf("unexpected ignore patterns %v", cfg.IgnorePatterns)
		}
	})

	t.Run("invalid duration returns error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("timeout: soon\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid duration")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("workers: 1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope")); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})
}

func TestEnv(t *testing.T) {
	t.Parallel()

	t.Run("applies recognized variables", func(t *testing.T) {
		t.Parallel()
		env := map[string]string{
			EnvTargetDomain: "example.com",
			EnvSitemapURL:   "https://example.com/wp-sitemap.xml",
			EnvURLToReplace: "http://localhost/",
			EnvWorkers:      "2",
		}
		lookup := func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}

		cfg := NewConfig()
		if err := ApplyEnv(cfg, lookup); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.TargetDomain != "example.com" || cfg.ReplacementBase != "http://localhost/" {
			t.Errorf("unexpected config %+v", cfg)
		}
		if cfg.SitemapURL != "https://example.com/wp-sitemap.xml" || cfg.Workers != 2 {
			t.Errorf("unexpected config %+v", cfg)
		}
	})

	t.Run("invalid number returns error", func(t *testing.T) {
		t.Parallel()
		lookup := func(key string) (string, bool) {
			if key == EnvMaxErrors {
				return "many", true
			}
			return "", false
		}
		if err := ApplyEnv(NewConfig(), lookup); err == nil {
			t.Error("expected error for invalid MAX_ERRORS")
		}
	})

	t.Run("dotenv file is read and missing file is fine", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, DefaultEnvFile)
		if err := os.WriteFile(path, []byte("SITEMIRROR_TEST_ONLY_KEY=from-file\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		lookup, err := EnvLookup(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, ok := lookup("SITEMIRROR_TEST_ONLY_KEY"); !ok || v != "from-file" {
			t.Errorf("expected value from dotenv, got %q %v", v, ok)
		}

		if _, err := EnvLookup(filepath.Join(dir, "missing.env")); err != nil {
			t.Errorf("expected missing dotenv to be ignored, got %v", err)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if filepath.Base(XDGDataDir()) != AppName {
		t.Errorf("expected data dir to end with %s, got %s", AppName, XDGDataDir())
	}
	if filepath.Base(XDGConfigDir()) != AppName {
		t.Errorf("expected config dir to end with %s, got %s", AppName, XDGConfigDir())
	}
}
