package crawler

import (
	"context"
	"fmt"
	"time"

	"tcphotos/pkg/classroom"
	"tcphotos/pkg/logger"
	"tcphotos/pkg/ratelimit"
)

const (
	// DefaultPageDelay is the pause between listing page requests
	DefaultPageDelay = 500 * time.Millisecond

	// FirstPage is the number of the first listing page
	FirstPage = 1
)

// PageSource fetches one page of posts. An empty page ends the listing.
type PageSource interface {
	FetchPosts(ctx context.Context, page int) ([]classroom.Post, error)
}

// PageFunc is called after every non-empty page with the page number, the
// posts on that page and the running total
type PageFunc func(page int, posts []classroom.Post, total int)

// Options configures a Crawler
type Options struct {
	// PageDelay of zero selects DefaultPageDelay; a negative value disables pacing
	PageDelay time.Duration

	// StartPage of zero selects FirstPage
	StartPage int

	// MaxPages stops the crawl after that many pages; zero means no limit
	MaxPages int

	OnPage PageFunc
	Logger logger.Logger
}

// Crawler walks listing pages until an empty one
type Crawler struct {
	source    PageSource
	limiter   ratelimit.Limiter
	startPage int
	maxPages  int
	onPage    PageFunc
	logger    logger.Logger
}

// New creates a crawler over source
func New(source PageSource, opts Options) *Crawler {
	delay := opts.PageDelay
	if delay == 0 {
		delay = DefaultPageDelay
	}
	start := opts.StartPage
	if start == 0 {
		start = FirstPage
	}

	return &Crawler{
		source:    source,
		limiter:   ratelimit.NewInterval(delay),
		startPage: start,
		maxPages:  opts.MaxPages,
		onPage:    opts.OnPage,
		logger:    logger.OrDefault(opts.Logger).WithField("component", "crawler"),
	}
}

// Crawl fetches pages in order and returns every post seen. It stops at the
// first page without posts, or at the first page whose posts were all seen
// already, which happens when the listing ignores the page number. A post id
// appears at most once in the result. Any page failure aborts the crawl and
// no posts are returned.
func (c *Crawler) Crawl(ctx context.Context) ([]classroom.Post, error) {
	var all []classroom.Post
	seen := make(map[string]bool)
	page := c.startPage

	for fetched := 0; c.maxPages == 0 || fetched < c.maxPages; fetched++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		posts, err := c.source.FetchPosts(ctx, page)
		if err != nil {
			c.logger.ErrorWithFields("Failed to fetch posts page", map[string]interface{}{
				"page":  page,
				"error": err.Error(),
			})
			return nil, fmt.Errorf("page %d: %w", page, err)
		}

		if len(posts) == 0 {
			c.logger.DebugWithFields("Reached empty page, crawl complete", map[string]interface{}{
				"page":  page,
				"total": len(all),
			})
			break
		}

		fresh := unseen(posts, seen)
		if len(fresh) == 0 {
			c.logger.WarnWithFields("Page repeats earlier posts, stopping crawl", map[string]interface{}{
				"page":  page,
				"total": len(all),
			})
			break
		}
		posts = fresh

		all = append(all, posts...)
		logger.LogCrawlProgress(c.logger, page, len(posts), len(all))
		if c.onPage != nil {
			c.onPage(page, posts, len(all))
		}
		page++
	}

	if all == nil {
		all = []classroom.Post{}
	}
	return all, nil
}

// unseen returns the posts whose id is not in seen and marks them. Posts
// without an id are always kept.
func unseen(posts []classroom.Post, seen map[string]bool) []classroom.Post {
	fresh := posts[:0:0]
	for _, p := range posts {
		if p.ID != "" {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
		}
		fresh = append(fresh, p)
	}
	return fresh
}
