package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	tcerrors "tcphotos/pkg/errors"
)

// AppDirName is the directory used under the user config directory
const AppDirName = "transparent-classroom-photos-grabber"

// Config holds all configuration options for the photo grabber
type Config struct {
	// Portal credentials and identifiers
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// School location written into every sidecar file
	School SchoolConfig `yaml:"school" json:"school"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Page cache settings
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Download ledger settings
	History HistoryConfig `yaml:"history" json:"history"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PortalConfig identifies the account and the child whose posts are fetched
type PortalConfig struct {
	Email     string `yaml:"email" json:"email"`
	Password  string `yaml:"password" json:"password"`
	SchoolID  uint64 `yaml:"school_id" json:"school_id"`
	ChildID   uint64 `yaml:"child_id" json:"child_id"`
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// SchoolConfig holds the school coordinates and free text keywords
type SchoolConfig struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	Keywords  string  `yaml:"keywords" json:"keywords"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// HTTPConfig holds transport configuration
type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	CloudflareBypass bool          `yaml:"cloudflare_bypass" json:"cloudflare_bypass"`
	CookieFile       string        `yaml:"cookie_file,omitempty" json:"cookie_file,omitempty"`
	DownloadAttempts uint          `yaml:"download_attempts" json:"download_attempts"`

	// DownloadsPerMinute caps photo fetches; zero disables the cap
	DownloadsPerMinute int `yaml:"downloads_per_minute" json:"downloads_per_minute"`
}

// CacheConfig holds the page cache configuration
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Directory string        `yaml:"directory,omitempty" json:"directory,omitempty"`
	MaxAge    time.Duration `yaml:"max_age" json:"max_age"`
}

// HistoryConfig holds the download ledger configuration
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Directory: "./photos",
		},
		HTTP: HTTPConfig{
			Timeout:            30 * time.Second,
			CloudflareBypass:   true,
			DownloadAttempts:   3,
			DownloadsPerMinute: 60,
		},
		Cache: CacheConfig{
			Enabled: false,
			MaxAge:  time.Hour,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if email := os.Getenv("TC_EMAIL"); email != "" {
		c.Portal.Email = email
	}
	if password := os.Getenv("TC_PASSWORD"); password != "" {
		c.Portal.Password = password
	}
	if baseURL := os.Getenv("TC_BASE_URL"); baseURL != "" {
		c.Portal.BaseURL = baseURL
	}

	if school := os.Getenv("SCHOOL"); school != "" {
		id, err := strconv.ParseUint(strings.TrimSpace(school), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid integer value for environment variable SCHOOL: %w", err))
		} else {
			c.Portal.SchoolID = id
		}
	}
	if child := os.Getenv("CHILD"); child != "" {
		id, err := strconv.ParseUint(strings.TrimSpace(child), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid integer value for environment variable CHILD: %w", err))
		} else {
			c.Portal.ChildID = id
		}
	}

	if lat := os.Getenv("SCHOOL_LAT"); lat != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid float value for environment variable SCHOOL_LAT: %w", err))
		} else {
			c.School.Latitude = v
		}
	}
	if lng := os.Getenv("SCHOOL_LNG"); lng != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid float value for environment variable SCHOOL_LNG: %w", err))
		} else {
			c.School.Longitude = v
		}
	}
	if keywords := os.Getenv("SCHOOL_KEYWORDS"); keywords != "" {
		c.School.Keywords = keywords
	}

	if outputDir := os.Getenv("TC_OUTPUT_DIR"); outputDir != "" {
		c.Output.Directory = outputDir
	}
	if cacheDir := os.Getenv("TC_CACHE_DIR"); cacheDir != "" {
		c.Cache.Directory = cacheDir
	}
	if logLevel := os.Getenv("TC_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Dir returns the per-user application directory. It is not created.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, AppDirName), nil
}

// DefaultPath returns the per-user config file location
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	locations := []string{
		"tcphotos.yaml",
		"tcphotos.yml",
	}
	if p, err := DefaultPath(); err == nil {
		locations = append(locations, p)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// ValidateCredentials checks the fields needed to sign in
func (c *Config) ValidateCredentials() error {
	var errs []error

	if strings.TrimSpace(c.Portal.Email) == "" {
		errs = append(errs, errors.New("email is required (TC_EMAIL)"))
	}
	if c.Portal.Password == "" {
		errs = append(errs, errors.New("password is required (TC_PASSWORD)"))
	}
	if c.Portal.SchoolID == 0 {
		errs = append(errs, errors.New("school id is required (SCHOOL)"))
	}
	if c.Portal.ChildID == 0 {
		errs = append(errs, errors.New("child id is required (CHILD)"))
	}

	return errors.Join(errs...)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if err := c.ValidateCredentials(); err != nil {
		errs = append(errs, err)
	}

	if c.School.Latitude < -90 || c.School.Latitude > 90 {
		errs = append(errs, errors.New("school latitude must be between -90 and 90"))
	}
	if c.School.Longitude < -180 || c.School.Longitude > 180 {
		errs = append(errs, errors.New("school longitude must be between -180 and 180"))
	}
	if strings.TrimSpace(c.School.Keywords) == "" {
		errs = append(errs, errors.New("school keywords are required (SCHOOL_KEYWORDS)"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http timeout cannot be negative"))
	}
	if c.HTTP.DownloadsPerMinute < 0 {
		errs = append(errs, errors.New("downloads per minute cannot be negative"))
	}
	if c.Cache.Enabled && c.Cache.MaxAge <= 0 {
		errs = append(errs, errors.New("cache max age must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Logging.Level))
	}

	validFormats := map[string]bool{"": true, "console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid log format: %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Portal.BaseURL = baseURL
	}
	if cookieFile, ok := flags["cookies"].(string); ok && cookieFile != "" {
		c.HTTP.CookieFile = cookieFile
	}
	if noCache, ok := flags["no-cache"].(bool); ok && noCache {
		c.Cache.Enabled = false
	}
	if cache, ok := flags["cache"].(bool); ok && cache {
		c.Cache.Enabled = true
	}
}

// LoadDotEnv loads .env files unless DOTENV_DISABLED is set
func LoadDotEnv() {
	if os.Getenv("DOTENV_DISABLED") != "" {
		return
	}
	// Missing files are fine
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".tcphotos.env"))
	}
}

// LoadUnvalidated merges every source without validating the result
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func LoadUnvalidated(configPath string, flags map[string]interface{}) (*Config, error) {
	LoadDotEnv()

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to load config file: %v", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to load environment variables: %v", err)
	}

	config.MergeCommandLineFlags(flags)

	return config, nil
}

// Load loads configuration from all sources with proper precedence and validates it
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	config, err := LoadUnvalidated(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "configuration validation failed: %v", err)
	}

	return config, nil
}
