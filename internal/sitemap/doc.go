// Package sitemap resolves sitemap indexes (sitemaps.org protocol 0.9)
// into the leaf page URLs that seed link discovery.
//
// Nested sitemaps are recognized by their .xml suffix and resolved
// recursively with a visited guard, so self-referencing or cyclic indexes
// terminate. Network and XML errors are logged and only drop the affected
// subtree.
package sitemap
