// Package ratelimit paces outbound requests to the school portal.
//
// Interval is the limiter used by the crawl loop: it enforces a fixed
// minimum gap between listing page fetches, with the first call allowed
// immediately. It is backed by golang.org/x/time/rate.
//
// SlidingWindow caps the number of calls inside a rolling window and is used
// by the downloader to bound photo fetches per minute.
//
// Both honour context cancellation in Wait:
//
//	limiter := ratelimit.NewInterval(500 * time.Millisecond)
//	for page := 1; ; page++ {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	    // fetch page
//	}
package ratelimit
