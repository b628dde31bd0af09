// Package crawler discovers the pages of the mirrored site by following
// anchors from the sitemap seeds.
//
// # Components
//
//   - Discoverer: breadth-first traversal of the live link graph with a
//     visited set, a bounded worker pool and a target-domain filter
//   - Parser: extracts and resolves anchor targets with golang.org/x/net/html
//
// Traversal terminates because the visited set only grows and the domain
// filter bounds the graph. Failures on one page are logged and only stop
// the expansion of that page.
//
// # Usage
//
//	d := crawler.NewDiscoverer(client, site.Domain("example.com"), crawler.WithConcurrency(4))
//	urls, err := d.Discover(ctx, seeds)
package crawler
