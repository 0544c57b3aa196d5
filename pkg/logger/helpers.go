package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed HTTP exchange at a level chosen by its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	l = OrDefault(l)
	switch {
	case statusCode >= 500:
		l.WarnWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.DebugWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the outcome of a single photo download
func LogDownload(l Logger, postID string, index int, path string, skipped bool, err error) {
	entry := OrDefault(l).WithFields(map[string]interface{}{
		"post_id": postID,
		"index":   index,
		"path":    path,
	})

	switch {
	case err != nil:
		entry.WithError(err).Error("Photo download failed")
	case skipped:
		entry.Debug("Photo already downloaded, skipping")
	default:
		entry.Info("Photo downloaded")
	}
}

// LogCrawlProgress logs the posts found on one listing page
func LogCrawlProgress(l Logger, page, pagePosts, total int) {
	OrDefault(l).InfoWithFields("Fetched posts page", map[string]interface{}{
		"page":        page,
		"page_posts":  pagePosts,
		"total_posts": total,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }

// Printf adapts l to the Errorf/Warnf/Debugf logger used by HTTP clients
// such as resty
type Printf struct {
	l Logger
}

// NewPrintf wraps l
func NewPrintf(l Logger) *Printf {
	return &Printf{l: OrDefault(l)}
}

func (p *Printf) Errorf(format string, v ...interface{}) {
	p.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (p *Printf) Warnf(format string, v ...interface{}) {
	p.l.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (p *Printf) Debugf(format string, v ...interface{}) {
	p.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
