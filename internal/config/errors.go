package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoDomain is returned when no target domain is configured.
	ErrNoDomain = errors.New("no target domain specified: set TARGET_DOMAIN or use --domain")

	// ErrNoReplacement is returned when no replacement base URL is configured.
	ErrNoReplacement = errors.New("no replacement base specified: set URL_TO_REPLACE or use --replace-with")

	// ErrInvalidSitemapURL is returned when the sitemap URL is not an absolute http(s) URL.
	ErrInvalidSitemapURL = errors.New("invalid sitemap URL: must be an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidRateLimit is returned when the rate limit or burst is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidRetries is returned when the retry count is not positive
	// or the backoff is negative.
	ErrInvalidRetries = errors.New("invalid retries: attempts must be positive and backoff non-negative")

	// ErrInvalidMaxErrors is returned when the error threshold is negative.
	// Use 0 to disable the threshold.
	ErrInvalidMaxErrors = errors.New("invalid max errors: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidProxyAddress is returned when the proxy is not in "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")
)
