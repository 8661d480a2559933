package models

import (
	"fmt"
	"strings"
	"time"
)

// Classification describes what a manifest entry obligates the syncer to do.
type Classification string

const (
	// ClassDownloadable entries are fetched during the download phase.
	ClassDownloadable Classification = "downloadable"
	// ClassSkipped entries were discovered but carry no fetch obligation
	// (extension filtered, duplicate, informational link). The reason is
	// recorded in Note.
	ClassSkipped Classification = "skipped"
	// ClassUnresolved entries were expected but could not be located
	// (all probe candidates missed). The probe detail is recorded in Note.
	ClassUnresolved Classification = "unresolved"
)

// ManifestEntry is one discovered remote resource for a source.
type ManifestEntry struct {
	SourceID       string         `json:"source_id"`
	ResourceURL    string         `json:"resource_url"`
	DisplayName    string         `json:"display_name"`
	Classification Classification `json:"classification"`
	Note           string         `json:"note,omitempty"`
	DiscoveredAt   time.Time      `json:"discovered_at"`
}

// Downloadable reports whether the entry must produce a DownloadResult.
func (e *ManifestEntry) Downloadable() bool {
	return e.Classification == ClassDownloadable
}

// Validate checks structural invariants.
func (e *ManifestEntry) Validate() error {
	if strings.TrimSpace(e.SourceID) == "" {
		return fmt.Errorf("source ID is required")
	}

	if strings.TrimSpace(e.DisplayName) == "" {
		return fmt.Errorf("display name is required")
	}

	switch e.Classification {
	case ClassDownloadable, ClassSkipped, ClassUnresolved:
	default:
		return fmt.Errorf("invalid classification: %s", e.Classification)
	}

	// Unresolved entries have no confirmed URL; everything else does.
	if e.Classification != ClassUnresolved && strings.TrimSpace(e.ResourceURL) == "" {
		return fmt.Errorf("resource URL is required for %s entry", e.Classification)
	}

	return nil
}

// Manifest is the ordered discovery output for one source and run.
// Order is discovery order and is preserved into reports.
type Manifest struct {
	SourceID string          `json:"source_id"`
	Entries  []ManifestEntry `json:"entries"`
	BuiltAt  time.Time       `json:"built_at"`

	// FallbackUsed marks that live discovery failed and the entries
	// came from the source's curated list instead.
	FallbackUsed bool `json:"fallback_used,omitempty"`
	// Notices are run-level observations worth surfacing to the user,
	// e.g. that a curated list was used and when it was last verified.
	Notices []string `json:"notices,omitempty"`
}

// Downloadable returns the entries that obligate a fetch, in order.
func (m *Manifest) Downloadable() []ManifestEntry {
	var out []ManifestEntry
	for _, e := range m.Entries {
		if e.Downloadable() {
			out = append(out, e)
		}
	}
	return out
}

// Counts returns entry totals per classification.
func (m *Manifest) Counts() (downloadable, skipped, unresolved int) {
	for _, e := range m.Entries {
		switch e.Classification {
		case ClassDownloadable:
			downloadable++
		case ClassSkipped:
			skipped++
		case ClassUnresolved:
			unresolved++
		}
	}
	return
}

// Validate checks the manifest and the per-run URL uniqueness invariant.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.SourceID) == "" {
		return fmt.Errorf("source ID is required")
	}

	seen := make(map[string]bool, len(m.Entries))
	for i := range m.Entries {
		e := &m.Entries[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.ResourceURL == "" {
			continue
		}
		if seen[e.ResourceURL] {
			return fmt.Errorf("duplicate resource URL: %s", e.ResourceURL)
		}
		seen[e.ResourceURL] = true
	}

	return nil
}
