// Package crawler walks the paginated post listing of one child.
//
// Pages are numbered from 1 and fetched strictly in order with a fixed pause
// between requests. The first page that yields no posts ends the crawl; a
// page that fails to fetch or parse aborts it.
//
// Usage:
//
//	c := crawler.New(client, crawler.Options{Logger: log})
//	posts, err := c.Crawl(ctx)
//
// CachedSource can wrap any PageSource to reuse recent pages from disk.
package crawler
