// Package location guesses a school's coordinates from the portal.
//
// The result is only a suggestion offered during setup. Nothing in the
// crawl or download path depends on it.
package location

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"tcphotos/pkg/classroom"
	tcerrors "tcphotos/pkg/errors"
)

// Coordinates is a latitude/longitude pair in degrees
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%s, %s",
		strconv.FormatFloat(c.Latitude, 'f', -1, 64),
		strconv.FormatFloat(c.Longitude, 'f', -1, 64))
}

// Valid reports whether both values are in range
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// ErrNotFound is returned when no source yields coordinates
var ErrNotFound = tcerrors.New(tcerrors.ErrorTypeNotFound, "Could not derive school location from portal")

// Fetcher is the subset of *classroom.Client used here
type Fetcher interface {
	Get(ctx context.Context, url string) (*classroom.Response, error)
	GetWithBasicAuth(ctx context.Context, url, username, password string) (*classroom.Response, error)
	RootURL() string
	BaseURL() string
}

const number = `([+-]?\d+(?:\.\d+)?)`

// coordinatePatterns are tried in order
var coordinatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)lat(?:itude)?["']?\s*[:=]\s*["']?` + number + `["']?\s*[,;]?\s*["']?(?:lng|lon(?:gitude)?)["']?\s*[:=]\s*["']?` + number),
	regexp.MustCompile(`LatLng\s*\(\s*` + number + `\s*,\s*` + number + `\s*\)`),
	regexp.MustCompile(`([+-]?\d+\.\d+)\s*,\s*([+-]?\d+\.\d+)`),
}

// Discover asks the school API for coordinates with Basic auth and falls
// back to scanning the school page's scripts and meta tags
func Discover(ctx context.Context, f Fetcher, schoolID uint64, email, password string) (Coordinates, error) {
	apiURL := fmt.Sprintf("%s/api/v1/schools/%d", f.RootURL(), schoolID)
	if res, err := f.GetWithBasicAuth(ctx, apiURL, email, password); err == nil && res.IsSuccess() {
		if c, ok := fromJSON(res.Body); ok {
			return c, nil
		}
	} else if ctx.Err() != nil {
		return Coordinates{}, ctx.Err()
	}

	res, err := f.Get(ctx, f.BaseURL())
	if err != nil {
		if ctx.Err() != nil {
			return Coordinates{}, ctx.Err()
		}
		return Coordinates{}, ErrNotFound
	}
	if !res.IsSuccess() {
		return Coordinates{}, ErrNotFound
	}
	if c, ok := FromHTML(res.Body); ok {
		return c, nil
	}
	return Coordinates{}, ErrNotFound
}

func fromJSON(body []byte) (Coordinates, bool) {
	var school struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(body, &school); err != nil {
		return Coordinates{}, false
	}
	if school.Latitude == nil || school.Longitude == nil {
		return Coordinates{}, false
	}
	c := Coordinates{Latitude: *school.Latitude, Longitude: *school.Longitude}
	return c, c.Valid()
}

// FromHTML scans script bodies, then meta content attributes
func FromHTML(body []byte) (Coordinates, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Coordinates{}, false
	}

	var found Coordinates
	var ok bool
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found, ok = ExtractCoordinates(s.Text())
		return !ok
	})
	if ok {
		return found, true
	}

	doc.Find("meta[content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content, _ := s.Attr("content")
		found, ok = ExtractCoordinates(content)
		return !ok
	})
	return found, ok
}

// ExtractCoordinates finds the first in-range coordinate pair in text
func ExtractCoordinates(text string) (Coordinates, bool) {
	for _, re := range coordinatePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			lat, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			lng, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			if c := (Coordinates{Latitude: lat, Longitude: lng}); c.Valid() {
				return c, true
			}
		}
	}
	return Coordinates{}, false
}
