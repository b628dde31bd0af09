// Package mirror runs one complete export of a site.
//
// A run resolves the sitemap, discovers every linked page of the target
// domain, exports each page with its assets, and writes the manifest,
// statistics and link lists into the export root. Re-running into the
// same root only fetches what is missing.
package mirror
