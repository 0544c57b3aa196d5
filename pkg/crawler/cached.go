package crawler

import (
	"context"
	"fmt"

	"tcphotos/pkg/cache"
	"tcphotos/pkg/classroom"
	"tcphotos/pkg/logger"
)

// CachedSource serves pages from a disk cache and fills it on a miss.
// Empty pages are never cached so the end of the listing is always checked
// against the portal.
type CachedSource struct {
	source   PageSource
	store    *cache.Store
	schoolID uint64
	childID  uint64
	logger   logger.Logger
}

// NewCachedSource wraps source with store. Keys are scoped to the school
// and child.
func NewCachedSource(source PageSource, store *cache.Store, schoolID, childID uint64, log logger.Logger) *CachedSource {
	return &CachedSource{
		source:   source,
		store:    store,
		schoolID: schoolID,
		childID:  childID,
		logger:   logger.OrDefault(log).WithField("component", "cache"),
	}
}

// Key returns the cache key for page
func (c *CachedSource) Key(page int) string {
	return fmt.Sprintf("page_%d_%d_%d", c.schoolID, c.childID, page)
}

// FetchPosts implements PageSource
func (c *CachedSource) FetchPosts(ctx context.Context, page int) ([]classroom.Post, error) {
	key := c.Key(page)

	var cached []classroom.Post
	ok, err := c.store.Get(key, &cached)
	if err != nil {
		c.logger.WarnWithFields("Ignoring unreadable cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	if ok && len(cached) > 0 {
		c.logger.DebugWithFields("Using cached posts page", map[string]interface{}{
			"page":  page,
			"posts": len(cached),
		})
		return cached, nil
	}

	posts, err := c.source.FetchPosts(ctx, page)
	if err != nil {
		return nil, err
	}

	if len(posts) > 0 {
		if err := c.store.Put(key, posts); err != nil {
			c.logger.WarnWithFields("Failed to cache posts page", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return posts, nil
}
