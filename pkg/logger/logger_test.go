package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tcphotos/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{
			name:    "valid config with info level",
			cfg:     &config.LoggingConfig{Level: "info"},
			wantErr: false,
		},
		{
			name:    "valid config with debug level",
			cfg:     &config.LoggingConfig{Level: "debug", Format: "json"},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			cfg:     &config.LoggingConfig{Level: "invalid"},
			wantErr: true,
		},
		{
			name:    "config with file output",
			cfg:     &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "tc.log")},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
			if tt.cfg.File != "" {
				if _, err := os.Stat(tt.cfg.File); err != nil {
					t.Errorf("expected log file to be created: %v", err)
				}
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.WithField("post_id", "P1").
		WithError(errors.New("boom")).
		InfoWithFields("Photo downloaded", map[string]interface{}{
			"index":    2,
			"duration": 1500 * time.Millisecond,
		})

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}

	if entry["message"] != "Photo downloaded" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["app"] != "tcphotos" {
		t.Errorf("app = %v", entry["app"])
	}
	if entry["post_id"] != "P1" {
		t.Errorf("post_id = %v", entry["post_id"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
	if entry["index"] != float64(2) {
		t.Errorf("index = %v", entry["index"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent, _ := NewWithWriter(&config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	_ = parent.WithField("child_only", true)
	parent.Info("parent")

	if strings.Contains(buf.String(), "child_only") {
		t.Errorf("parent logger picked up child field: %q", buf.String())
	}
}

func TestHelpersWithTestLogger(t *testing.T) {
	tl := NewTestLogger()

	LogDownload(tl, "P1", 0, "/tmp/P1_max.jpg", false, nil)
	LogDownload(tl, "P1", 1, "/tmp/P1_1_max.jpg", true, nil)
	LogDownload(tl, "P2", 0, "", false, errors.New("status 500"))
	LogCrawlProgress(tl, 3, 10, 25)
	LogRequest(tl, "GET", "https://example.test/", 503, 20*time.Millisecond)

	if !tl.HasMessage("INFO", "Photo downloaded") {
		t.Error("expected success download log")
	}
	if !tl.HasMessage("DEBUG", "already downloaded") {
		t.Error("expected skip download log")
	}
	errs := tl.GetMessagesByLevel("ERROR")
	if len(errs) != 1 || errs[0].Fields["error"] != "status 500" || errs[0].Fields["post_id"] != "P2" {
		t.Errorf("unexpected error logs: %+v", errs)
	}
	if !tl.HasMessage("INFO", "Fetched posts page") {
		t.Error("expected crawl progress log")
	}
	if !tl.HasMessage("WARN", "server error") {
		t.Error("expected server error request log")
	}

	tl.Clear()
	if len(tl.GetMessages()) != 0 {
		t.Error("Clear() did not drop messages")
	}
}

func TestOrDefault(t *testing.T) {
	nop := NewNopLogger()
	if OrDefault(nop) != nop {
		t.Error("OrDefault should return the given logger")
	}
	if OrDefault(nil) == nil {
		t.Error("OrDefault(nil) should return the global logger")
	}
}

func TestPrintfAdapter(t *testing.T) {
	tl := NewTestLogger()
	p := NewPrintf(tl)

	p.Warnf("Using Basic Auth in %s mode\n", "HTTP")
	p.Errorf("attempt %d failed", 2)
	p.Debugf("trace")

	warns := tl.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Message != "Using Basic Auth in HTTP mode" {
		t.Errorf("unexpected warn logs: %+v", warns)
	}
	if !tl.HasMessage("ERROR", "attempt 2 failed") {
		t.Error("expected formatted error log")
	}
	if !tl.HasMessage("DEBUG", "trace") {
		t.Error("expected debug log")
	}
}
