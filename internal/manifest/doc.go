// Package manifest accumulates exported pages and media into the export
// manifest.
//
// An Aggregator is shared by every worker of a run. Taxonomy terms are
// deduplicated across pages; per-page term lists are kept as they were
// extracted.
package manifest
