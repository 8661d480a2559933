package models

import "time"

// Outcome describes how a downloadable entry ended up.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeSkippedUnchanged Outcome = "skipped_unchanged"
	OutcomeFailed           Outcome = "failed"
	OutcomeManualRequired   Outcome = "manual_required"
)

// DownloadResult is the outcome for one downloadable manifest entry.
type DownloadResult struct {
	ResourceURL string   `json:"resource_url"`
	LocalPath   string   `json:"local_path,omitempty"`
	Outcome     Outcome  `json:"outcome"`
	ErrorDetail string   `json:"error_detail,omitempty"`
	// Notices carry advisory context: curated-list staleness, strategy
	// escalations, manual download guidance.
	Notices []string `json:"notices,omitempty"`
}

// OK reports whether the entry left local storage in the desired state.
func (r *DownloadResult) OK() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeSkippedUnchanged
}

// SyncReport bundles everything a run produced. Results are index-aligned
// with the downloadable subsequence of the manifest, in discovery order.
type SyncReport struct {
	SourceID   string           `json:"source_id"`
	RunID      string           `json:"run_id"`
	Manifest   *Manifest        `json:"manifest"`
	Results    []DownloadResult `json:"results"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	// SkipDownload marks a manifest-only run: no fetch phase, no writes.
	SkipDownload bool `json:"skip_download,omitempty"`
}

// Totals returns result counts per outcome.
func (r *SyncReport) Totals() map[Outcome]int {
	totals := make(map[Outcome]int, 4)
	for _, res := range r.Results {
		totals[res.Outcome]++
	}
	return totals
}

// Failed reports whether any entry ended in a failure outcome.
func (r *SyncReport) Failed() bool {
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
