package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tcerrors "tcphotos/pkg/errors"
)

// unknownDate marks a post without a usable date
const unknownDate = "Unknown Date"

// filenameEscaper percent-encodes characters that are unsafe in file names,
// and the percent sign itself, so distinct ids never share a name
var filenameEscaper = strings.NewReplacer(
	"%", "%25", "/", "%2F", "\\", "%5C", ":", "%3A", "*", "%2A", "?", "%3F",
	"\"", "%22", "<", "%3C", ">", "%3E", "|", "%7C", "\x00", "%00",
)

// PhotoFilename returns the file name for photo index of a post that has
// count photos. Single-photo posts omit the index. Ids such as "7_0" on a
// single-photo post and "7" on a multi-photo post can still meet.
func PhotoFilename(postID string, index, count int) string {
	id := filenameEscaper.Replace(postID)
	switch id {
	case "":
		id = "%"
	case ".":
		id = "%2E"
	case "..":
		id = "%2E%2E"
	}
	if count > 1 {
		return fmt.Sprintf("%s_%d_max.jpg", id, index)
	}
	return fmt.Sprintf("%s_max.jpg", id)
}

// Manager owns the output directory
type Manager struct {
	outputDir string
}

// NewManager creates the output directory if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, tcerrors.IO(err, "failed to create output directory: %v", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// ForDir returns a manager for outputDir without creating it. Exists works
// on a missing directory; Save does not.
func ForDir(outputDir string) *Manager {
	return &Manager{outputDir: outputDir}
}

// OutputDir returns the directory photos are written to
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Path joins name onto the output directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name)
}

// Exists reports whether name is already present as a regular file
func (m *Manager) Exists(name string) bool {
	info, err := os.Stat(m.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Save writes r to name through a temporary file and returns the final path.
// A partial write never leaves name behind.
func (m *Manager) Save(r io.Reader, name string) (string, error) {
	filename := m.Path(name)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", tcerrors.IO(err, "failed to create temporary file: %v", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", tcerrors.IO(err, "failed to save photo data: %v", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", tcerrors.IO(closeErr, "failed to close file: %v", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", tcerrors.IO(err, "failed to rename temporary file: %v", err)
	}

	return filename, nil
}

// ParseDate reads an RFC 3339 timestamp or a plain 2006-01-02 date
func ParseDate(date string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	if date == "" || date == unknownDate {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// SetModTime stamps path with the post date. It reports false when the date
// could not be parsed and the file was left alone.
func SetModTime(path, date string) (bool, error) {
	t, ok := ParseDate(date)
	if !ok {
		return false, nil
	}
	if err := os.Chtimes(path, t, t); err != nil {
		return false, tcerrors.IO(err, "failed to set file time on %s: %v", path, err)
	}
	return true, nil
}
