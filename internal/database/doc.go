// Package database keeps a SQLite ledger of export runs.
//
// Every run is recorded with its counters, and with the pages and media
// it exported, so that earlier exports of a domain can be listed and
// compared later. The ledger uses modernc.org/sqlite, a CGO-free driver,
// and keeps everything in a single file in the user's data directory.
package database
