// Package main provides the entry point for the sitemirror CLI.
//
// sitemirror exports a WordPress site into a static local mirror: every
// page discovered from the sitemap and the link graph is saved with its
// stylesheets, scripts and images, references to the original domain are
// rewritten to a replacement base URL, and the extracted content is
// written to wordpress_export.json.
//
// Usage:
//
//	sitemirror export --domain example.com --replace-with http://localhost/
//	sitemirror history example.com
//
// See --help for all available options.
package main

// main is the entry point for sitemirror.
func main() {
	Execute()
}
