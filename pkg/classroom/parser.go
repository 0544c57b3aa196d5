package classroom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	tcerrors "tcphotos/pkg/errors"
)

// ResponseKind selects the parser for a listing body
type ResponseKind int

const (
	KindHTML ResponseKind = iota
	KindJSON
)

func (k ResponseKind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindHTML:
		return "html"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindForURL decides the response kind from the URL that served the body
func KindForURL(u string) ResponseKind {
	if strings.Contains(u, ".json") {
		return KindJSON
	}
	return KindHTML
}

// Parse converts a listing body to posts. rootURL resolves relative links in
// HTML listings.
func Parse(kind ResponseKind, body []byte, rootURL string) ([]Post, error) {
	if kind == KindJSON {
		return ParseJSON(body)
	}
	return ParseHTML(body, rootURL)
}

// ParseJSON reads posts from a root array or from a "posts" or "data" array
func ParseJSON(body []byte) ([]Post, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, tcerrors.Parse("Failed to parse JSON response: %v", err)
	}

	items, err := postArray(doc)
	if err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, tcerrors.Parse("Post %d is not a valid object", i)
		}
		posts = append(posts, postFromJSON(obj, i))
	}
	return posts, nil
}

func postArray(doc interface{}) ([]interface{}, error) {
	switch v := doc.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		for _, key := range []string{"posts", "data"} {
			field, ok := v[key]
			if !ok {
				continue
			}
			arr, ok := field.([]interface{})
			if !ok {
				return nil, tcerrors.Parse("%s field is not an array", key)
			}
			return arr, nil
		}
	}
	return nil, tcerrors.Parse("Could not find posts array in JSON response")
}

func postFromJSON(obj map[string]interface{}, index int) Post {
	post := Post{
		ID:     jsonID(obj["id"], index),
		Title:  jsonTitle(obj),
		Author: jsonAuthor(obj),
		Date:   firstString(obj, DefaultDate, "date", "created_at", "timestamp"),
		URL:    firstString(obj, "", "url", "link"),
	}

	if original, ok := obj["original_photo_url"].(string); ok {
		if original != "" {
			post.PhotoURLs = append(post.PhotoURLs, original)
		}
	} else if photo, ok := obj["photo_url"].(string); ok && photo != "" {
		post.PhotoURLs = append(post.PhotoURLs, photo)
	}

	if photos, ok := obj["photos"].([]interface{}); ok {
		post.PhotoURLs = append(post.PhotoURLs, entryURLs(photos)...)
	} else if images, ok := obj["images"].([]interface{}); ok {
		post.PhotoURLs = append(post.PhotoURLs, entryURLs(images)...)
	}

	return post
}

func jsonID(v interface{}, index int) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		if n, err := strconv.ParseUint(id.String(), 10, 64); err == nil {
			return strconv.FormatUint(n, 10)
		}
	}
	return fmt.Sprintf("post_%d", index)
}

// jsonTitle prefers the text of the html fragment. A fragment with no text
// falls back to normalized_text only.
func jsonTitle(obj map[string]interface{}) string {
	if fragment, ok := obj["html"].(string); ok {
		if text := fragmentText(fragment); text != "" {
			return text
		}
		return firstString(obj, DefaultTitle, "normalized_text")
	}
	return firstString(obj, DefaultTitle, "normalized_text", "title", "text", "content")
}

func jsonAuthor(obj map[string]interface{}) string {
	if fragment, ok := obj["author"].(string); ok {
		if text := fragmentText(fragment); text != "" {
			return text
		}
		return DefaultAuthor
	}
	return firstString(obj, DefaultAuthor, "author_name", "user")
}

// firstString returns the first of keys holding a string value
func firstString(obj map[string]interface{}, fallback string, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			return s
		}
	}
	return fallback
}

// entryURLs accepts bare strings or objects with a url field
func entryURLs(entries []interface{}) []string {
	var urls []string
	for _, e := range entries {
		switch v := e.(type) {
		case string:
			urls = append(urls, v)
		case map[string]interface{}:
			if u, ok := v["url"].(string); ok {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// ParseHTML reads posts from .observation blocks. A page without any block
// yields an empty slice.
func ParseHTML(body []byte, rootURL string) ([]Post, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, tcerrors.Parse("Failed to parse HTML response: %v", err)
	}

	posts := []Post{}
	doc.Find(".observation").Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr("id")
		if !ok {
			id = fmt.Sprintf("post_%d", len(posts))
		}

		post := Post{
			ID:     id,
			Title:  selectionText(s.Find(".observation-text"), DefaultTitle),
			Author: selectionText(s.Find(".observation-author"), DefaultAuthor),
			Date:   selectionText(s.Find(".observation-date"), DefaultDate),
		}

		if href, ok := s.Find("a.observation-link").First().Attr("href"); ok {
			post.URL = resolveAgainstRoot(href, rootURL)
		}

		s.Find(".observation-photo img").Each(func(_ int, img *goquery.Selection) {
			if src, ok := img.Attr("src"); ok {
				post.PhotoURLs = append(post.PhotoURLs, resolveAgainstRoot(src, rootURL))
			}
		})

		posts = append(posts, post)
	})

	return posts, nil
}

// selectionText returns the text of the first matched element, or fallback
// when nothing matched
func selectionText(s *goquery.Selection, fallback string) string {
	if s.Length() == 0 {
		return fallback
	}
	return nodeText(s.Get(0))
}
