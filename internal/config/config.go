package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Config holds all application configuration.
type Config struct {
	// HTTP fetch behavior
	HTTP HTTPConfig `json:"http"`

	// Headless browser (DevTools) settings
	Browser BrowserConfig `json:"browser"`

	// Storage paths
	Storage StorageConfig `json:"storage"`

	// Sync behavior
	Sync SyncConfig `json:"sync"`

	// Logging
	Log LogConfig `json:"log"`

	// GitHub API access
	GitHub GitHubConfig `json:"github,omitempty"`
}

// HTTPConfig for outbound requests.
type HTTPConfig struct {
	RequestTimeout  time.Duration `json:"request_timeout"`  // Listing pages, HEAD probes
	DownloadTimeout time.Duration `json:"download_timeout"` // Document bodies
	MaxRetries      int           `json:"max_retries"`
	RetryDelay      time.Duration `json:"retry_delay"` // Initial backoff delay
	RateDelay       time.Duration `json:"rate_delay"`  // Politeness delay between requests
	UserAgent       string        `json:"user_agent"`
}

// BrowserConfig for the rendered fetch path.
type BrowserConfig struct {
	// DevTools HTTP endpoint of a running Chrome/Chromium instance,
	// e.g. http://127.0.0.1:9222. Empty disables rendered fetches.
	Endpoint    string        `json:"endpoint"`
	NavTimeout  time.Duration `json:"nav_timeout"`  // Page load wait
	EvalTimeout time.Duration `json:"eval_timeout"` // In-page fetch wait
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir      string `json:"data_dir"`      // Base directory for all data
	ContentDir   string `json:"content_dir"`   // Synced documents
	StateDir     string `json:"state_dir"`     // Fingerprint state
	ReportDir    string `json:"report_dir"`    // Manifest and result reports
	TempDir      string `json:"temp_dir"`      // Temporary files
	MaxFileSize  int64  `json:"max_file_size"` // Max document size in bytes
	StateBackend string `json:"state_backend"` // json or sqlite
	SourcesFile  string `json:"sources_file"`  // Optional source overlay (YAML)
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	DownloadWorkers  int           `json:"download_workers"`  // Concurrent downloads per source
	MaxPages         int           `json:"max_pages"`         // Paged listing bound (0 = first page only)
	ProbeMonths      int           `json:"probe_months"`      // Dated-archive probe window
	ProgressInterval time.Duration `json:"progress_interval"` // Progress update frequency
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // Log file path (empty = stderr)
	Color  bool   `json:"color"`  // Enable colored output
}

// GitHubConfig for API-based discovery.
type GitHubConfig struct {
	// Token is read from GITHUB_TOKEN when empty. Unauthenticated
	// requests work but hit a much lower rate limit.
	Token string `json:"token,omitempty"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := filepath.Join(xdg.DataHome, "cwm")

	return &Config{
		HTTP: HTTPConfig{
			RequestTimeout:  30 * time.Second,
			DownloadTimeout: 120 * time.Second,
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			RateDelay:       250 * time.Millisecond,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		Browser: BrowserConfig{
			Endpoint:    "",
			NavTimeout:  30 * time.Second,
			EvalTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			ContentDir:   filepath.Join(dataDir, "content"),
			StateDir:     filepath.Join(dataDir, "state"),
			ReportDir:    filepath.Join(dataDir, "reports"),
			TempDir:      filepath.Join(dataDir, "temp"),
			MaxFileSize:  500 * 1024 * 1024, // STIG library zips run large
			StateBackend: "json",
			SourcesFile:  "",
		},
		Sync: SyncConfig{
			DownloadWorkers:  4,
			MaxPages:         0,
			ProbeMonths:      24,
			ProgressInterval: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
			Color:  true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.HTTP.RequestTimeout <= 0 {
		return errors.New("http.request_timeout must be positive")
	}

	if c.HTTP.DownloadTimeout <= 0 {
		return errors.New("http.download_timeout must be positive")
	}

	if c.HTTP.MaxRetries < 0 {
		return errors.New("http.max_retries must not be negative")
	}

	if c.Storage.MaxFileSize <= 0 {
		return errors.New("storage.max_file_size must be positive")
	}

	if c.Storage.StateBackend != "json" && c.Storage.StateBackend != "sqlite" {
		return fmt.Errorf("invalid state backend: %s", c.Storage.StateBackend)
	}

	if c.Sync.DownloadWorkers <= 0 {
		return errors.New("sync.download_workers must be positive")
	}

	if c.Sync.MaxPages < 0 {
		return errors.New("sync.max_pages must not be negative")
	}

	if c.Sync.ProbeMonths <= 0 {
		return errors.New("sync.probe_months must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// SetDataDir points all storage paths under a new base directory.
func (c *Config) SetDataDir(dir string) {
	c.Storage.DataDir = dir
	c.Storage.ContentDir = filepath.Join(dir, "content")
	c.Storage.StateDir = filepath.Join(dir, "state")
	c.Storage.ReportDir = filepath.Join(dir, "reports")
	c.Storage.TempDir = filepath.Join(dir, "temp")
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		c.Storage.ContentDir,
		c.Storage.StateDir,
		c.Storage.ReportDir,
		c.Storage.TempDir,
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
