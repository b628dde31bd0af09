// Package extract pulls structured WordPress content out of a parsed page.
//
// Extraction is best effort: every field that cannot be found is left as an
// empty string or an empty list, and extraction never fails a page.
package extract
