// Package asset downloads same-domain resources into the mirror.
//
// A download is idempotent: a file that already exists at its save path
// is treated as downloaded and never fetched again. Concurrent requests
// for the same save path share a single download.
package asset
