// Package log provides secure logging built on top of the standard slog package.
//
// SecureHandler masks sensitive attributes before they are written:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-WP-Nonce)
//   - values that look like bearer tokens, JWTs or application passwords
//   - nonce, token and signature query parameters inside logged URLs
//
// FanoutHandler duplicates records to several handlers with independent
// levels. NewRunLogger combines the two: a quiet console plus a run log file
// in the export root that captures every fetch, skip and error event.
//
//	logger := log.NewRunLogger(os.Stderr, runLogFile, verbose)
//	logger.Info("fetching", "url", "https://example.com/?_wpnonce=abc")
//	// url=https://example.com/?_wpnonce=%2A%2A%2AREDACTED%2A%2A%2A
package log
