package metadata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tcerrors "tcphotos/pkg/errors"
)

// Extension is appended to a photo's stem to name its sidecar
const Extension = ".metadata.txt"

// Sidecar is the provenance written next to every downloaded photo
type Sidecar struct {
	Title     string
	Author    string
	Date      string
	URL       string
	PostID    string
	Latitude  float64
	Longitude float64
	Keywords  string
}

// Path returns the sidecar location for photoPath: the photo's extension is
// replaced with .metadata.txt
func Path(photoPath string) string {
	return strings.TrimSuffix(photoPath, filepath.Ext(photoPath)) + Extension
}

// Format renders the fixed key/value layout
func (s Sidecar) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", s.Title)
	fmt.Fprintf(&b, "Author: %s\n", s.Author)
	fmt.Fprintf(&b, "Date: %s\n", s.Date)
	fmt.Fprintf(&b, "URL: %s\n", s.URL)
	fmt.Fprintf(&b, "Post ID: %s\n", s.PostID)
	fmt.Fprintf(&b, "School Location: %s, %s (%s)\n",
		formatCoordinate(s.Latitude), formatCoordinate(s.Longitude), s.Keywords)
	return b.String()
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Write stores the sidecar for photoPath and returns its path
func (s Sidecar) Write(photoPath string) (string, error) {
	path := Path(photoPath)
	if err := os.WriteFile(path, []byte(s.Format()), 0644); err != nil {
		return "", tcerrors.IO(err, "failed to write metadata file: %v", err)
	}
	return path, nil
}

// Read parses a sidecar file. Unknown lines are ignored.
func Read(path string) (*Sidecar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tcerrors.IO(err, "failed to read metadata file: %v", err)
	}
	defer f.Close()

	s := &Sidecar{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ": ")
		if !ok {
			continue
		}
		switch key {
		case "Title":
			s.Title = value
		case "Author":
			s.Author = value
		case "Date":
			s.Date = value
		case "URL":
			s.URL = value
		case "Post ID":
			s.PostID = value
		case "School Location":
			if err := s.parseLocation(value); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, tcerrors.IO(err, "failed to read metadata file: %v", err)
	}
	return s, nil
}

// parseLocation reads "lat, lng (keywords)"
func (s *Sidecar) parseLocation(value string) error {
	coords, keywords, _ := strings.Cut(value, " (")
	s.Keywords = strings.TrimSuffix(keywords, ")")

	latText, lngText, ok := strings.Cut(coords, ", ")
	if !ok {
		return tcerrors.Parse("invalid school location %q", value)
	}
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return tcerrors.Parse("invalid latitude %q", latText)
	}
	lng, err := strconv.ParseFloat(lngText, 64)
	if err != nil {
		return tcerrors.Parse("invalid longitude %q", lngText)
	}
	s.Latitude, s.Longitude = lat, lng
	return nil
}

// Exists checks if a sidecar exists for a photo
func Exists(photoPath string) bool {
	_, err := os.Stat(Path(photoPath))
	return err == nil
}

// CleanOrphaned removes sidecars in directory whose photo is gone and
// returns how many were removed
func CleanOrphaned(directory string) (int, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return 0, tcerrors.IO(err, "failed to read directory: %v", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, Extension) {
			continue
		}
		photo := filepath.Join(directory, strings.TrimSuffix(name, Extension)+".jpg")
		if _, err := os.Stat(photo); !os.IsNotExist(err) {
			continue
		}
		if err := os.Remove(filepath.Join(directory, name)); err != nil {
			return removed, tcerrors.IO(err, "failed to remove orphaned metadata %s: %v", name, err)
		}
		removed++
	}
	return removed, nil
}
