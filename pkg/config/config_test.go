package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Portal.Email = "parent@example.com"
	cfg.Portal.Password = "secret"
	cfg.Portal.SchoolID = 123
	cfg.Portal.ChildID = 456
	cfg.School.Latitude = 37.7749
	cfg.School.Longitude = -122.4194
	cfg.School.Keywords = "Montessori, San Francisco"
	return cfg
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TC_EMAIL", "TC_PASSWORD", "SCHOOL", "CHILD", "SCHOOL_LAT", "SCHOOL_LNG",
		"SCHOOL_KEYWORDS", "TC_BASE_URL", "TC_OUTPUT_DIR", "TC_LOG_LEVEL", "TC_CACHE_DIR",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DOTENV_DISABLED", "1")
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Output.Directory != "./photos" {
		t.Errorf("Expected default output directory to be ./photos, got %s", config.Output.Directory)
	}
	if config.HTTP.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout to be 30s, got %v", config.HTTP.Timeout)
	}
	if config.HTTP.DownloadAttempts != 3 {
		t.Errorf("Expected default download attempts to be 3, got %d", config.HTTP.DownloadAttempts)
	}
	if config.Cache.MaxAge != time.Hour {
		t.Errorf("Expected default cache max age to be 1h, got %v", config.Cache.MaxAge)
	}
	if !config.History.Enabled {
		t.Error("Expected download history to be enabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TC_EMAIL", "parent@example.com")
	t.Setenv("TC_PASSWORD", "secret")
	t.Setenv("SCHOOL", "123")
	t.Setenv("CHILD", " 456 ")
	t.Setenv("SCHOOL_LAT", "37.7749")
	t.Setenv("SCHOOL_LNG", "-122.4194")
	t.Setenv("SCHOOL_KEYWORDS", "Montessori")
	t.Setenv("TC_OUTPUT_DIR", "/tmp/tc-photos")
	t.Setenv("TC_LOG_LEVEL", "debug")

	config := DefaultConfig()
	if err := config.LoadFromEnv(); err != nil {
		t.Fatalf("Failed to load from environment: %v", err)
	}

	if config.Portal.Email != "parent@example.com" || config.Portal.Password != "secret" {
		t.Errorf("credentials not loaded: %+v", config.Portal)
	}
	if config.Portal.SchoolID != 123 || config.Portal.ChildID != 456 {
		t.Errorf("ids not loaded: school=%d child=%d", config.Portal.SchoolID, config.Portal.ChildID)
	}
	if config.School.Latitude != 37.7749 || config.School.Longitude != -122.4194 {
		t.Errorf("location not loaded: %+v", config.School)
	}
	if config.Output.Directory != "/tmp/tc-photos" {
		t.Errorf("Expected output dir /tmp/tc-photos, got %s", config.Output.Directory)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", config.Logging.Level)
	}
}

func TestLoadFromEnvInvalidNumber(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SCHOOL", "abc"},
		{"CHILD", "-1"},
		{"SCHOOL_LAT", "north"},
		{"SCHOOL_LNG", "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			err := DefaultConfig().LoadFromEnv()
			if err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error should name the variable %s: %v", tt.key, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "missing email",
			modify:  func(c *Config) { c.Portal.Email = "  " },
			wantErr: "email is required",
		},
		{
			name:    "missing password",
			modify:  func(c *Config) { c.Portal.Password = "" },
			wantErr: "password is required",
		},
		{
			name:    "zero school",
			modify:  func(c *Config) { c.Portal.SchoolID = 0 },
			wantErr: "school id is required",
		},
		{
			name:    "zero child",
			modify:  func(c *Config) { c.Portal.ChildID = 0 },
			wantErr: "child id is required",
		},
		{
			name:    "latitude out of range",
			modify:  func(c *Config) { c.School.Latitude = 91 },
			wantErr: "latitude must be between",
		},
		{
			name:    "longitude out of range",
			modify:  func(c *Config) { c.School.Longitude = -181 },
			wantErr: "longitude must be between",
		},
		{
			name:    "missing keywords",
			modify:  func(c *Config) { c.School.Keywords = "" },
			wantErr: "keywords are required",
		},
		{
			name:    "empty output",
			modify:  func(c *Config) { c.Output.Directory = "" },
			wantErr: "output directory is required",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name: "cache without max age",
			modify: func(c *Config) {
				c.Cache.Enabled = true
				c.Cache.MaxAge = 0
			},
			wantErr: "cache max age",
		},
		{
			name:    "negative download cap",
			modify:  func(c *Config) { c.HTTP.DownloadsPerMinute = -1 },
			wantErr: "downloads per minute cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateJoinsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty config")
	}
	for _, want := range []string{"email", "password", "school id", "child id", "keywords"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Enabled = true

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":    "/tmp/out",
		"log-level": "debug",
		"base-url":  "http://127.0.0.1:9999/schools/1",
		"cookies":   "cookies.txt",
		"no-cache":  true,
		"unknown":   42,
	})

	if cfg.Output.Directory != "/tmp/out" {
		t.Errorf("output = %s", cfg.Output.Directory)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s", cfg.Logging.Level)
	}
	if cfg.Portal.BaseURL != "http://127.0.0.1:9999/schools/1" {
		t.Errorf("base url = %s", cfg.Portal.BaseURL)
	}
	if cfg.HTTP.CookieFile != "cookies.txt" {
		t.Errorf("cookie file = %s", cfg.HTTP.CookieFile)
	}
	if cfg.Cache.Enabled {
		t.Error("no-cache flag should disable the cache")
	}

	// Empty values must not override
	cfg.MergeCommandLineFlags(map[string]interface{}{"output": ""})
	if cfg.Output.Directory != "/tmp/out" {
		t.Errorf("empty flag overrode output: %s", cfg.Output.Directory)
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := validConfig()
	original.Cache.Enabled = true
	original.HTTP.Timeout = 10 * time.Second
	if err := original.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded := DefaultConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Portal != original.Portal {
		t.Errorf("portal mismatch: %+v vs %+v", loaded.Portal, original.Portal)
	}
	if loaded.School != original.School {
		t.Errorf("school mismatch: %+v vs %+v", loaded.School, original.School)
	}
	if loaded.HTTP.Timeout != 10*time.Second || !loaded.Cache.Enabled {
		t.Errorf("http/cache mismatch: %+v %+v", loaded.HTTP, loaded.Cache)
	}
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("portal: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := DefaultConfig().LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	fileCfg := validConfig()
	fileCfg.Output.Directory = "/from/file"
	fileCfg.Logging.Level = "warn"
	if err := fileCfg.Save(path); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TC_OUTPUT_DIR", "/from/env")
	t.Setenv("CHILD", "789")

	cfg, err := Load(path, map[string]interface{}{"log-level": "debug"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Directory != "/from/env" {
		t.Errorf("env should override file, got %s", cfg.Output.Directory)
	}
	if cfg.Portal.ChildID != 789 {
		t.Errorf("env should override child id, got %d", cfg.Portal.ChildID)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("flag should override file, got %s", cfg.Logging.Level)
	}
	if cfg.Portal.SchoolID != 123 {
		t.Errorf("file value lost: %d", cfg.Portal.SchoolID)
	}
}

func TestLoadValidationFailure(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("portal:\n  email: a@b.c\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path, nil); err == nil {
		t.Fatal("expected validation failure")
	}

	cfg, err := LoadUnvalidated(path, nil)
	if err != nil {
		t.Fatalf("LoadUnvalidated() error = %v", err)
	}
	if cfg.Portal.Email != "a@b.c" {
		t.Errorf("email = %s", cfg.Portal.Email)
	}
}
