// Package model defines the data structures shared by the mirror packages:
//   - PageRecord: structured content of one exported page or post
//   - AssetRecord: a downloaded media file
//   - Manifest: the wordpress_export.json document
//   - Statistics: concurrency-safe run counters
//
// The types serialize to the JSON layout of the export artifacts.
package model
