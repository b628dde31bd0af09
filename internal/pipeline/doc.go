// Package pipeline exports pages of the mirrored site.
//
// Each URL runs through a Pipeline of steps: skip pages that are already
// exported, skip other domains, fetch, extract content, localize assets,
// rewrite domain references and persist the result. A step stops a page
// with ErrSkip when there is nothing to do, or with any other error when
// the page failed.
//
// PageExporter wraps a Pipeline with the bookkeeping of one page and
// BatchProcessor exports many pages with a bounded number of workers.
// A failed page never stops the batch unless the configured error
// threshold is reached.
package pipeline
