package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitemirror"

// xdgConfigFile is the configuration file name inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

// DefaultEnvFile is the dotenv file read from the working directory.
const DefaultEnvFile = ".env"

// Environment variable names.
const (
	EnvTargetDomain  = "TARGET_DOMAIN"
	EnvSitemapURL    = "SITEMAP_URL"
	EnvURLToReplace  = "URL_TO_REPLACE"
	EnvExportDir     = "EXPORT_DIR"
	EnvAllowURLsFile = "ALLOW_URLS_FILE"
	EnvWorkers       = "WORKERS"
	EnvMaxErrors     = "MAX_ERRORS"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Duration is a time.Duration that unmarshals from strings such as "30s".
type Duration time.Duration

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .sitemirror in the current directory
// 3. Look for .sitemirror in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), xdgConfigFile)
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}

// LookupFunc reports the value of an environment variable.
// os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// EnvLookup returns a LookupFunc that consults the process environment first
// and falls back to the variables in the dotenv file at path.
// A missing dotenv file is not an error.
func EnvLookup(path string) (LookupFunc, error) {
	var fromFile map[string]string
	if path != "" {
		vars, err := godotenv.Read(path)
		switch {
		case err == nil:
			fromFile = vars
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fromFile[key]
		return v, ok
	}, nil
}

// ApplyEnv copies the recognized environment variables onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvTargetDomain, &cfg.TargetDomain)
	set(EnvSitemapURL, &cfg.SitemapURL)
	set(EnvURLToReplace, &cfg.ReplacementBase)
	set(EnvExportDir, &cfg.ExportDir)
	set(EnvAllowURLsFile, &cfg.AllowListPath)

	for key, dst := range map[string]*int{EnvWorkers: &cfg.Workers, EnvMaxErrors: &cfg.MaxErrors} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}
	return nil
}
