package classroom

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	tcerrors "tcphotos/pkg/errors"
)

// Page is a listing body together with the URL that produced it
type Page struct {
	URL    string
	Kind   ResponseKind
	Status int
	Body   []byte
}

// fetchOutcome tracks the last HTTP status seen across a cascade
type fetchOutcome struct {
	lastStatus int
	responded  bool
}

func (c *Client) candidate(url string, outcome *fetchOutcome) Attempt[*Page] {
	return Attempt[*Page]{
		Name: url,
		Run: func(ctx context.Context) (*Page, error) {
			res, err := c.Get(ctx, url)
			if err != nil {
				return nil, err
			}
			outcome.responded = true
			outcome.lastStatus = res.Status
			if !res.IsSuccess() {
				return nil, tcerrors.Transport(res.Status, "%s returned status %d", url, res.Status)
			}
			return &Page{URL: url, Kind: KindForURL(url), Status: res.Status, Body: res.Body}, nil
		},
	}
}

// FetchPage returns the first listing body any candidate URL serves for page.
// The primary URL is tried first, then the fixed fallbacks, then links found
// on the school page.
func (c *Client) FetchPage(ctx context.Context, page int) (*Page, error) {
	ctx, span := tracer.Start(ctx, "classroom.FetchPage")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	outcome := &fetchOutcome{}

	attempts := []Attempt[*Page]{c.candidate(c.PrimaryPostsURL(page), outcome)}
	for _, u := range c.FallbackPostsURLs(page) {
		attempts = append(attempts, c.candidate(u, outcome))
	}

	result, err := Cascade(ctx, attempts...)
	if err == nil {
		c.logPageSource(result, page)
		span.SetAttributes(attribute.String("url", result.URL))
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.logger.DebugWithFields("All listing endpoints failed, discovering links", map[string]interface{}{
		"page":     page,
		"attempts": len(attempts),
	})

	discovered, derr := c.DiscoverEndpoints(ctx)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if derr != nil {
		c.logger.DebugWithFields("Endpoint discovery failed", map[string]interface{}{
			"error": derr.Error(),
		})
	}
	if len(discovered) > 0 {
		extra := make([]Attempt[*Page], 0, len(discovered))
		for _, u := range discovered {
			extra = append(extra, c.candidate(u, outcome))
		}
		result, err = Cascade(ctx, extra...)
		if err == nil {
			c.logPageSource(result, page)
			span.SetAttributes(attribute.String("url", result.URL))
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var final error
	if outcome.responded {
		final = tcerrors.Transport(outcome.lastStatus,
			"Failed to fetch posts from Transparent Classroom. Status: %d. This might indicate an authentication or permissions issue.",
			outcome.lastStatus)
	} else {
		final = tcerrors.Transport(0, "Failed to connect to Transparent Classroom: no endpoint responded")
	}
	span.RecordError(final)
	span.SetStatus(codes.Error, final.Error())
	return nil, final
}

func (c *Client) logPageSource(p *Page, page int) {
	c.logger.DebugWithFields("Fetched posts listing", map[string]interface{}{
		"page": page,
		"url":  p.URL,
		"kind": p.Kind.String(),
	})
}

// DiscoverEndpoints scans the school page for links that may serve posts. The
// host root page is scanned instead when the school page is unavailable.
func (c *Client) DiscoverEndpoints(ctx context.Context) ([]string, error) {
	pages := []string{c.baseURL}
	if c.rootURL != c.baseURL {
		pages = append(pages, c.rootURL+"/")
	}

	var lastErr error
	for _, pageURL := range pages {
		res, err := c.Get(ctx, pageURL)
		if err != nil {
			lastErr = err
			continue
		}
		if !res.IsSuccess() {
			lastErr = tcerrors.Transport(res.Status, "Failed to fetch school page. Status: %d", res.Status)
			continue
		}

		urls, err := discoverLinks(res.Body, c.rootURL, c.baseURL)
		if err != nil {
			return nil, tcerrors.Wrap(tcerrors.ErrorTypeParse, err, "failed to parse school page: %v", err)
		}
		c.logger.DebugWithFields("Discovered candidate endpoints", map[string]interface{}{
			"page":  pageURL,
			"count": len(urls),
			"urls":  urls,
		})
		return urls, nil
	}
	return nil, lastErr
}

// FetchPosts fetches and parses one listing page
func (c *Client) FetchPosts(ctx context.Context, page int) ([]Post, error) {
	p, err := c.FetchPage(ctx, page)
	if err != nil {
		return nil, err
	}

	posts, err := Parse(p.Kind, p.Body, c.rootURL)
	if err != nil {
		var typed *tcerrors.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, tcerrors.Wrap(tcerrors.ErrorTypeParse, err, "failed to parse %s: %v", p.URL, err)
	}
	if len(posts) == 0 {
		c.logger.DebugWithFields("Listing page has no posts", map[string]interface{}{"page": page, "url": p.URL})
	}
	return posts, nil
}
