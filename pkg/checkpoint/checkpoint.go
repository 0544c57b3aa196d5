package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "modernc.org/sqlite"

	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
)

//go:embed schema.sql
var schema string

// Entry is one downloaded photo
type Entry struct {
	PostID       string
	Index        int
	URL          string
	Path         string
	Title        string
	Date         string
	DownloadedAt time.Time
}

// Ledger records downloaded photos in a SQLite database
type Ledger struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

// Open opens or creates the ledger at path. An empty path selects DefaultPath.
func Open(ctx context.Context, path string, log logger.Logger) (*Ledger, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, tcerrors.IO(err, "failed to resolve history path: %v", err)
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, tcerrors.IO(err, "failed to create history directory: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, tcerrors.IO(err, "failed to open history database: %v", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, tcerrors.IO(err, "failed to initialise history database: %v", err)
	}

	l := &Ledger{
		db:     db,
		path:   path,
		logger: logger.OrDefault(log).WithField("component", "history"),
	}
	l.logger.DebugWithFields("History ledger opened", map[string]interface{}{"path": path})
	return l, nil
}

// Path returns the database file location
func (l *Ledger) Path() string {
	return l.path
}

// Close releases the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores a download, replacing any earlier row for the same photo
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	at := e.DownloadedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO downloads (post_id, photo_index, url, path, title, post_date, downloaded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (post_id, photo_index) DO UPDATE SET
    url = excluded.url,
    path = excluded.path,
    title = excluded.title,
    post_date = excluded.post_date,
    downloaded_at = excluded.downloaded_at`,
		e.PostID, e.Index, e.URL, e.Path, e.Title, e.Date, at.Unix())
	if err != nil {
		return tcerrors.IO(err, "failed to record download of %s/%d: %v", e.PostID, e.Index, err)
	}

	l.logger.DebugWithFields("Download recorded", map[string]interface{}{
		"post_id": e.PostID,
		"index":   e.Index,
		"path":    e.Path,
	})
	return nil
}

// Has reports whether the photo was recorded
func (l *Ledger) Has(ctx context.Context, postID string, index int) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE post_id = ? AND photo_index = ?`,
		postID, index).Scan(&n)
	if err != nil {
		return false, tcerrors.IO(err, "failed to query history: %v", err)
	}
	return n > 0, nil
}

// List returns the most recent downloads first. A limit of zero or less
// returns every row.
func (l *Ledger) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT post_id, photo_index, url, path, title, post_date, downloaded_at
FROM downloads ORDER BY downloaded_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, tcerrors.IO(err, "failed to list history: %v", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.PostID, &e.Index, &e.URL, &e.Path, &e.Title, &e.Date, &at); err != nil {
			return nil, tcerrors.IO(err, "failed to read history row: %v", err)
		}
		e.DownloadedAt = time.Unix(at, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, tcerrors.IO(err, "failed to read history: %v", err)
	}
	return entries, nil
}

// Count returns the number of recorded downloads
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&n); err != nil {
		return 0, tcerrors.IO(err, "failed to count history: %v", err)
	}
	return n, nil
}

// DefaultPath returns history.db inside the platform data directory
func DefaultPath() (string, error) {
	dir, err := dataDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

func dataDirectory() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "tcphotos"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "tcphotos"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "tcphotos"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "tcphotos"), nil
	}
}
