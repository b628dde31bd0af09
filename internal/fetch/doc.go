// Package fetch is the HTTP layer of the mirror. It exposes the two
// capabilities the rest of the code depends on, Getter for pages and
// sitemaps and Opener for streamed asset downloads, backed by a Client that
// adds per-host rate limiting, retries with exponential backoff, an optional
// SOCKS5 proxy and charset decoding.
package fetch
