package downloader

import (
	"bytes"
	"context"
	"os"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"tcphotos/pkg/checkpoint"
	"tcphotos/pkg/classroom"
	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
	"tcphotos/pkg/metadata"
	"tcphotos/pkg/ratelimit"
	"tcphotos/pkg/storage"
)

const (
	// DefaultAttempts is the number of tries per photo
	DefaultAttempts = 3

	// DefaultRetryDelay is the initial pause between tries
	DefaultRetryDelay = time.Second
)

// Fetcher performs an authenticated GET. *classroom.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*classroom.Response, error)
}

// Recorder keeps a history of completed downloads. *checkpoint.Ledger
// implements it.
type Recorder interface {
	Record(ctx context.Context, e checkpoint.Entry) error
}

// Outcome is what happened to one photo
type Outcome int

const (
	Downloaded Outcome = iota
	Skipped
	Planned
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case Skipped:
		return "skipped"
	case Planned:
		return "planned"
	default:
		return "failed"
	}
}

// PhotoFunc observes every photo handled by Download. err is set only for
// Failed. Invalid indices are not reported.
type PhotoFunc func(post classroom.Post, index int, path string, outcome Outcome, err error)

// Location is written into every sidecar
type Location struct {
	Latitude  float64
	Longitude float64
	Keywords  string
}

// Options configures a Manager
type Options struct {
	OutputDir string
	Location  Location

	// Attempts of zero selects DefaultAttempts
	Attempts uint
	// RetryDelay of zero selects DefaultRetryDelay
	RetryDelay time.Duration
	// PerMinute caps fetches per rolling minute; zero disables the cap
	PerMinute int

	// DryRun resolves file names without network access or disk writes
	DryRun bool

	// Ledger is optional
	Ledger  Recorder
	OnPhoto PhotoFunc
	Logger  logger.Logger
}

// Stats counts outcomes across calls
type Stats struct {
	Downloaded int
	Skipped    int
	Planned    int
	Failed     int
}

// Manager downloads the photos of a post into the output directory. A photo
// whose file already exists is never fetched again.
type Manager struct {
	fetcher  Fetcher
	storage  *storage.Manager
	location Location
	attempts uint
	delay    time.Duration
	limiter  ratelimit.Limiter
	dryRun   bool
	ledger   Recorder
	onPhoto  PhotoFunc
	logger   logger.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a download manager. Outside dry-run mode the output directory
// is created.
func New(fetcher Fetcher, opts Options) (*Manager, error) {
	var store *storage.Manager
	if opts.DryRun {
		store = storage.ForDir(opts.OutputDir)
	} else {
		s, err := storage.NewManager(opts.OutputDir)
		if err != nil {
			return nil, err
		}
		store = s
	}

	attempts := opts.Attempts
	if attempts == 0 {
		attempts = DefaultAttempts
	}
	delay := opts.RetryDelay
	if delay == 0 {
		delay = DefaultRetryDelay
	}

	m := &Manager{
		fetcher:  fetcher,
		storage:  store,
		location: opts.Location,
		attempts: attempts,
		delay:    delay,
		dryRun:   opts.DryRun,
		ledger:   opts.Ledger,
		onPhoto:  opts.OnPhoto,
		logger:   logger.OrDefault(opts.Logger).WithField("component", "downloader"),
	}
	if opts.PerMinute > 0 {
		m.limiter = ratelimit.NewSlidingWindow(opts.PerMinute, time.Minute)
	}
	return m, nil
}

// OutputDir returns the directory photos are written to
func (m *Manager) OutputDir() string {
	return m.storage.OutputDir()
}

// Stats returns the outcome counters so far
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) report(post classroom.Post, index int, path string, outcome Outcome, err error) {
	m.mu.Lock()
	switch outcome {
	case Downloaded:
		m.stats.Downloaded++
	case Skipped:
		m.stats.Skipped++
	case Planned:
		m.stats.Planned++
	default:
		m.stats.Failed++
	}
	m.mu.Unlock()

	if m.onPhoto != nil {
		m.onPhoto(post, index, path, outcome, err)
	}
}

// Download stores photo index of post and returns its path. An existing file
// is returned without any network access, and gets its metadata file back if
// that was lost. In dry-run mode the path that would be written is returned.
func (m *Manager) Download(ctx context.Context, post classroom.Post, index int) (string, error) {
	if !post.HasPhotos() {
		return "", tcerrors.New(tcerrors.ErrorTypeNotFound, "Post %s has no photos to download", post.ID)
	}
	if index < 0 || index >= len(post.PhotoURLs) {
		return "", tcerrors.New(tcerrors.ErrorTypeNotFound,
			"Photo index %d out of range for post with %d photos", index, len(post.PhotoURLs))
	}

	name := storage.PhotoFilename(post.ID, index, len(post.PhotoURLs))
	path := m.storage.Path(name)

	if m.storage.Exists(name) {
		if !m.dryRun && !metadata.Exists(path) {
			if _, err := m.sidecar(post).Write(path); err != nil {
				m.logger.WithError(err).Warn("Failed to restore missing metadata file")
			}
		}
		m.report(post, index, path, Skipped, nil)
		logger.LogDownload(m.logger, post.ID, index, path, true, nil)
		return path, nil
	}

	photoURL := post.PhotoURLs[index]
	if m.dryRun {
		m.report(post, index, path, Planned, nil)
		m.logger.InfoWithFields("Dry run: would download photo", map[string]interface{}{
			"post_id": post.ID,
			"index":   index,
			"url":     photoURL,
			"path":    path,
		})
		return path, nil
	}

	data, err := m.fetch(ctx, photoURL)
	if err != nil {
		return "", m.fail(post, index, path, err)
	}

	// the sidecar goes first so a photo on disk always has one
	sidecar, err := m.sidecar(post).Write(path)
	if err != nil {
		return "", m.fail(post, index, path, err)
	}
	if _, err := m.storage.Save(bytes.NewReader(data), name); err != nil {
		_ = os.Remove(sidecar)
		return "", m.fail(post, index, path, err)
	}
	if _, err := storage.SetModTime(path, post.Date); err != nil {
		m.logger.WithError(err).Debug("Could not set photo modification time")
	}

	if m.ledger != nil {
		entry := checkpoint.Entry{
			PostID: post.ID,
			Index:  index,
			URL:    photoURL,
			Path:   path,
			Title:  post.Title,
			Date:   post.Date,
		}
		if err := m.ledger.Record(ctx, entry); err != nil {
			m.logger.WithError(err).Warn("Failed to record download in history")
		}
	}

	m.report(post, index, path, Downloaded, nil)
	logger.LogDownload(m.logger, post.ID, index, path, false, nil)
	return path, nil
}

func (m *Manager) fail(post classroom.Post, index int, path string, err error) error {
	m.report(post, index, path, Failed, err)
	logger.LogDownload(m.logger, post.ID, index, path, false, err)
	return err
}

// DownloadAll downloads every photo of post. Failed photos are logged and
// skipped; the paths that succeeded are returned. The only error is a done
// context.
func (m *Manager) DownloadAll(ctx context.Context, post classroom.Post) ([]string, error) {
	paths := make([]string, 0, len(post.PhotoURLs))
	for i := range post.PhotoURLs {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		path, err := m.Download(ctx, post, i)
		if err != nil {
			if ctx.Err() != nil {
				return paths, ctx.Err()
			}
			m.logger.WarnWithFields("Skipping photo after failure", map[string]interface{}{
				"post_id": post.ID,
				"index":   i,
				"error":   err.Error(),
			})
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// fetch GETs url, retrying transport failures and retryable statuses
func (m *Manager) fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	var lastErr error

	err := retry.Do(
		func() error {
			if m.limiter != nil {
				if err := m.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}

			res, err := m.fetcher.Get(ctx, url)
			if err != nil {
				lastErr = err
				return err
			}
			if !res.IsSuccess() {
				lastErr = tcerrors.Transport(res.Status, "Failed to download photo. Status: %d", res.Status)
				return lastErr
			}
			data = res.Body
			return nil
		},
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(m.delay/2),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			m.logger.WarnWithFields("Retrying photo download", map[string]interface{}{
				"url":     url,
				"attempt": n + 1,
				"error":   err.Error(),
			})
		}),
		retry.RetryIf(tcerrors.ShouldRetry),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}
	return data, nil
}

func (m *Manager) sidecar(post classroom.Post) metadata.Sidecar {
	return metadata.Sidecar{
		Title:     post.Title,
		Author:    post.Author,
		Date:      post.Date,
		URL:       post.URL,
		PostID:    post.ID,
		Latitude:  m.location.Latitude,
		Longitude: m.location.Longitude,
		Keywords:  m.location.Keywords,
	}
}
