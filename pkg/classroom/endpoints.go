package classroom

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// discoveryKeywords select anchors on the school page that may lead to posts
var discoveryKeywords = []string{"observation", "event", "photo", "post", "feed", "timeline"}

// SignInURL returns the host-level sign-in page
func (c *Client) SignInURL() string {
	return c.rootURL + "/souls/sign_in?locale=en"
}

// SignInPostURL returns the form target for the login POST
func (c *Client) SignInPostURL() string {
	return c.rootURL + "/souls/sign_in"
}

// APIProbeURL returns the child-scoped endpoint used to test Basic auth
func (c *Client) APIProbeURL() string {
	return fmt.Sprintf("%s/api/v1/children/%d", c.baseURL, c.childID)
}

// PrimaryPostsURL builds the preferred listing URL for page. Loopback hosts
// use the observations page; real hosts use the child's posts.json feed.
// Page 0 means the unpaginated listing.
func (c *Client) PrimaryPostsURL(page int) string {
	if c.IsLoopback() {
		return withPage(c.baseURL+"/observations", "?", page, 0)
	}
	u := fmt.Sprintf("%s://%s/s/%d/children/%d/posts.json?locale=en",
		c.base.Scheme, c.base.Host, c.schoolID, c.childID)
	return withPage(u, "&", page, 1)
}

// FallbackPostsURLs returns the ordered alternatives tried when the primary
// URL does not answer with a 2xx
func (c *Client) FallbackPostsURLs(page int) []string {
	observations := c.baseURL + "/observations"
	if strings.Contains(c.baseURL, "/schools") {
		observations = c.rootURL + "/observations"
	}

	return []string{
		withPage(observations, "?", page, 0),
		fmt.Sprintf("%s/children/%d/observations", c.baseURL, c.childID),
		fmt.Sprintf("%s/api/v1/children/%d/events", c.baseURL, c.childID),
		fmt.Sprintf("%s/api/v1/children/%d/photos", c.baseURL, c.childID),
		c.baseURL + "/api/v1/events",
		c.baseURL + "/dashboard",
		c.baseURL,
	}
}

// withPage appends page when it is above from
func withPage(u, sep string, page, from int) string {
	if page > from {
		return fmt.Sprintf("%s%spage=%d", u, sep, page)
	}
	return u
}

// discoverLinks extracts candidate listing URLs from a school page. Hrefs
// containing a discovery keyword are made absolute, deduplicated and sorted.
func discoverLinks(body []byte, rootURL, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !containsAny(href, discoveryKeywords) {
			return
		}
		seen[absolutize(href, rootURL, baseURL)] = struct{}{}
	})

	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

// absolutize resolves host-relative hrefs against root and bare relative
// hrefs against base
func absolutize(href, rootURL, baseURL string) string {
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "/"):
		return rootURL + href
	default:
		return baseURL + "/" + href
	}
}

// resolveAgainstRoot turns a relative link or photo source into an absolute URL
func resolveAgainstRoot(ref, rootURL string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	root, err := url.Parse(rootURL + "/")
	if err != nil {
		return rootURL + ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return rootURL + ref
	}
	return root.ResolveReference(rel).String()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
