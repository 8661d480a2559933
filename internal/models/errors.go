package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeDiscovery = "DISCOVERY_FAILED"
	ErrCodeProbeMiss = "PROBE_MISS"
	ErrCodeFetch     = "FETCH_FAILED"
	ErrCodeBlocked   = "BLOCKED"
	ErrCodeRender    = "RENDER_FAILED"
	ErrCodeManual    = "MANUAL_REQUIRED"
	ErrCodeNetwork   = "NETWORK_ERROR"
	ErrCodeStorage   = "STORAGE_ERROR"
	ErrCodeState     = "STATE_ERROR"
	ErrCodeConfig    = "CONFIG_ERROR"
)

// Sentinel errors
var (
	ErrSyncInProgress     = errors.New("sync already in progress")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrSourceUnknown      = errors.New("unknown source")
	ErrBlocked            = errors.New("access blocked")
	ErrManualRequired     = errors.New("manual download required")
	ErrEmptyDownload      = errors.New("downloaded file is empty")
	ErrBrowserUnavailable = errors.New("browser endpoint not configured")
	ErrNoFallbackList     = errors.New("no curated fallback list for source")
)

// HTTPError represents a non-success response from a remote server.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d (%s): %s", e.StatusCode, e.Status, e.URL)
}

// Permanent reports whether retrying cannot help.
func (e *HTTPError) Permanent() bool {
	return e.StatusCode == 404 || e.StatusCode == 410
}

// Blocked reports whether the server refused a non-browser client.
func (e *HTTPError) Blocked() bool {
	return e.StatusCode == 403 || e.StatusCode == 401
}

// SourceError is a fatal, source-level failure. It aborts the sync run
// for that source and is reported once.
type SourceError struct {
	Code     string
	SourceID string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s [%s]: %v", e.SourceID, e.Code, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// EntryError is a per-entry failure. It is captured into the download
// report and never propagates past the orchestrator.
type EntryError struct {
	Code string
	URL  string
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("entry [%s]: %s -> %s: %v", e.Code, e.URL, e.Path, e.Err)
	}
	return fmt.Sprintf("entry [%s]: %s: %v", e.Code, e.URL, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
