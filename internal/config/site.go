package config

// SiteConfig holds request settings for a single domain.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this domain.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request to this domain.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL path globs that discovery does not follow,
	// e.g. "/wp-admin/*" or "/feed/*".
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`
}

// File represents the structure of the .sitemirror configuration file.
// Zero values leave the corresponding Config field untouched.
type File struct {
	Domain      string  `yaml:"domain,omitempty"`
	Sitemap     string  `yaml:"sitemap,omitempty"`
	Replacement string  `yaml:"replacement,omitempty"`
	Output      string  `yaml:"output,omitempty"`
	AllowList   string  `yaml:"allowList,omitempty"`
	Workers     int     `yaml:"workers,omitempty"`
	RateLimit   float64 `yaml:"rateLimit,omitempty"`
	Burst       int     `yaml:"burst,omitempty"`
	MaxRetries  int     `yaml:"maxRetries,omitempty"`
	MaxErrors   int     `yaml:"maxErrors,omitempty"`
	UserAgent   string  `yaml:"userAgent,omitempty"`
	Proxy       string  `yaml:"proxy,omitempty"`

	// Timeout is a Go duration string such as "30s".
	Timeout Duration `yaml:"timeout,omitempty"`

	// Sites maps domains to their request settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every domain unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the request settings for a domain, merging the
// site-specific entry over the defaults.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults

	siteConfig, ok := cf.Sites[domain]
	if !ok {
		return result
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(siteConfig.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range siteConfig.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	return result
}

// Apply copies every value set in the file onto cfg.
// The site settings for the resulting target domain are merged into
// cfg.Headers and cfg.IgnorePatterns.
func (cf *File) Apply(cfg *Config) {
	if cf.Domain != "" {
		cfg.TargetDomain = cf.Domain
	}
	if cf.Sitemap != "" {
		cfg.SitemapURL = cf.Sitemap
	}
	if cf.Replacement != "" {
		cfg.ReplacementBase = cf.Replacement
	}
	if cf.Output != "" {
		cfg.ExportDir = cf.Output
	}
	if cf.AllowList != "" {
		cfg.AllowListPath = cf.AllowList
	}
	if cf.Workers != 0 {
		cfg.Workers = cf.Workers
	}
	if cf.RateLimit != 0 {
		cfg.RateLimit = cf.RateLimit
	}
	if cf.Burst != 0 {
		cfg.Burst = cf.Burst
	}
	if cf.MaxRetries != 0 {
		cfg.MaxRetries = cf.MaxRetries
	}
	if cf.MaxErrors != 0 {
		cfg.MaxErrors = cf.MaxErrors
	}
	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
	if cf.Proxy != "" {
		cfg.ProxyAddress = cf.Proxy
	}
	if cf.Timeout > 0 {
		cfg.Timeout = cf.Timeout.Duration()
	}

	sc := cf.GetSiteConfig(NormalizeDomain(cfg.TargetDomain))
	if len(sc.Headers) > 0 || sc.Cookie != "" {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		for k, v := range sc.Headers {
			cfg.Headers[k] = v
		}
		if sc.Cookie != "" {
			cfg.Headers["Cookie"] = sc.Cookie
		}
	}
	if len(sc.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = append(cfg.IgnorePatterns, sc.IgnorePatterns...)
	}
}
