// Package report renders sync runs into the CSV artifacts downstream
// tooling consumes. Column order is fixed, rows follow manifest
// discovery order, and absent values are an explicit "N/A" so the
// files diff cleanly between runs.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/storage"
)

// NA marks a value the run could not provide. Report consumers key on
// it, so it is never an empty string.
const NA = "N/A"

var (
	manifestHeader = []string{"title", "href", "download_url", "status", "note"}
	resultsHeader  = []string{"title", "href", "download_url", "message", "success", "path"}
)

// Writer persists report artifacts through a content store rooted at
// the reports directory.
type Writer struct {
	store  storage.ContentStore
	logger *events.Logger
}

func NewWriter(store storage.ContentStore, logger *events.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger.WithField("component", "report"),
	}
}

// WriteManifest renders `<source>-manifest.csv`. Returns the relative
// path of the artifact.
func (w *Writer) WriteManifest(m *models.Manifest) (string, error) {
	rows := make([][]string, 0, len(m.Entries)+1)
	rows = append(rows, manifestHeader)
	for i := range m.Entries {
		rows = append(rows, manifestRow(&m.Entries[i]))
	}

	name := fmt.Sprintf("%s-manifest.csv", m.SourceID)
	if err := w.writeCSV(name, rows); err != nil {
		return "", err
	}

	w.logger.WithFields(map[string]interface{}{
		"source":  m.SourceID,
		"entries": len(m.Entries),
		"file":    name,
	}).Info("Wrote manifest report")

	return name, nil
}

// WriteResults renders `<source>-results.csv` with one row per
// manifest entry: downloadable entries carry their download outcome,
// everything else gets an N/A row. Entries beyond the recorded results
// (an interrupted run) are reported as not attempted.
func (w *Writer) WriteResults(report *models.SyncReport) (string, error) {
	rows := make([][]string, 0, len(report.Manifest.Entries)+1)
	rows = append(rows, resultsHeader)

	ri := 0
	for i := range report.Manifest.Entries {
		entry := &report.Manifest.Entries[i]
		if !entry.Downloadable() {
			rows = append(rows, skippedRow(entry))
			continue
		}
		if ri < len(report.Results) {
			rows = append(rows, resultRow(entry, &report.Results[ri]))
			ri++
			continue
		}
		rows = append(rows, notAttemptedRow(entry))
	}

	name := fmt.Sprintf("%s-results.csv", report.SourceID)
	if err := w.writeCSV(name, rows); err != nil {
		return "", err
	}

	w.logger.WithFields(map[string]interface{}{
		"source": report.SourceID,
		"rows":   len(rows) - 1,
		"file":   name,
	}).Info("Wrote results report")

	return name, nil
}

// WriteFailure renders a results file with a single row describing a
// source-level failure, so a run that never produced a manifest still
// leaves an artifact saying why.
func (w *Writer) WriteFailure(sourceID string, cause error) (string, error) {
	rows := [][]string{
		resultsHeader,
		{NA, NA, NA, cause.Error(), "false", NA},
	}

	name := fmt.Sprintf("%s-results.csv", sourceID)
	if err := w.writeCSV(name, rows); err != nil {
		return "", err
	}

	w.logger.WithFields(map[string]interface{}{
		"source": sourceID,
		"file":   name,
	}).Info("Wrote failure report")

	return name, nil
}

func (w *Writer) writeCSV(name string, rows [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := w.store.Write(name, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func manifestRow(e *models.ManifestEntry) []string {
	downloadURL := NA
	if e.Downloadable() {
		downloadURL = e.ResourceURL
	}
	return []string{
		orNA(e.DisplayName),
		orNA(e.ResourceURL),
		downloadURL,
		statusFor(e.Classification),
		orNA(e.Note),
	}
}

func resultRow(e *models.ManifestEntry, r *models.DownloadResult) []string {
	return []string{
		orNA(e.DisplayName),
		orNA(e.ResourceURL),
		orNA(e.ResourceURL),
		message(r),
		strconv.FormatBool(r.OK()),
		orNA(r.LocalPath),
	}
}

func skippedRow(e *models.ManifestEntry) []string {
	msg := e.Note
	if msg == "" {
		msg = "skipped (no downloadable link)"
	}
	return []string{orNA(e.DisplayName), orNA(e.ResourceURL), NA, msg, "false", NA}
}

func notAttemptedRow(e *models.ManifestEntry) []string {
	return []string{orNA(e.DisplayName), orNA(e.ResourceURL), orNA(e.ResourceURL), "not attempted", "false", NA}
}

// message folds the outcome and any acquisition notices into the
// single message column.
func message(r *models.DownloadResult) string {
	var msg string
	switch r.Outcome {
	case models.OutcomeSuccess:
		msg = "downloaded"
	case models.OutcomeSkippedUnchanged:
		msg = "skipped (unchanged)"
	case models.OutcomeManualRequired:
		msg = r.ErrorDetail
		if msg == "" {
			msg = "manual download required"
		}
	default:
		msg = r.ErrorDetail
		if msg == "" {
			msg = "failed"
		}
	}
	if len(r.Notices) > 0 {
		msg = msg + "; " + strings.Join(r.Notices, "; ")
	}
	return msg
}

func statusFor(c models.Classification) string {
	switch c {
	case models.ClassDownloadable:
		return "ready"
	case models.ClassUnresolved:
		return "unresolved"
	default:
		return "skipped"
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NA
	}
	return s
}
