package sync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/fetch"
	"github.com/ColonelPanicX/comply-with-me/internal/fingerprint"
	"github.com/ColonelPanicX/comply-with-me/internal/manifest"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/report"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/storage"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

// Engine runs the sync algorithm for one source at a time: discover,
// diff against the fingerprint state, download what changed, report
// everything that was discovered.
type Engine struct {
	registry *sources.Registry
	builder  *manifest.Builder
	fetcher  fetch.Fetcher
	client   transport.Client
	state    fingerprint.Store
	content  storage.ContentStore
	reports  *report.Writer
	logger   *events.Logger

	workers int

	// Progress tracking
	progress   atomic.Value // *Progress
	progressMu sync.Mutex

	// State commits are serialized even though fetches are concurrent.
	stateMu sync.Mutex

	// Run lifecycle
	mu           sync.Mutex
	syncing      bool
	runID        string
	cancelFn     context.CancelFunc
	events       chan Event
	eventsClosed bool
}

// Progress tracks a run as it moves through its phases.
type Progress struct {
	Phase      string
	Total      int
	Processed  int
	CurrentURL string
	Bytes      int64
	Failures   int
	StartTime  time.Time
}

// Event is one observable step of a sync run.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SourceID  string
	RunID     string
	Entry     *models.ManifestEntry
	Result    *models.DownloadResult
	Tier      string
	Error     error
	Progress  *Progress
}

// EventType defines sync event types.
type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventEntryStarted  EventType = "entry_started"
	EventEntryComplete EventType = "entry_complete"
	EventEntrySkipped  EventType = "entry_skipped"
	EventEntryFailed   EventType = "entry_failed"
	EventEntryManual   EventType = "entry_manual"
	EventEscalated     EventType = "escalated"
	EventRunCompleted  EventType = "run_completed"
	EventRunFailed     EventType = "run_failed"
)

// Options configures one sync run. Zero values take config defaults.
type Options struct {
	SkipDownload bool
	Workers      int
	MaxPages     int
}

const eventBuffer = 100

// NewEngine creates a sync engine.
func NewEngine(
	registry *sources.Registry,
	builder *manifest.Builder,
	fetcher fetch.Fetcher,
	client transport.Client,
	state fingerprint.Store,
	content storage.ContentStore,
	reports *report.Writer,
	workers int,
	logger *events.Logger,
) *Engine {
	return &Engine{
		registry: registry,
		builder:  builder,
		fetcher:  fetcher,
		client:   client,
		state:    state,
		content:  content,
		reports:  reports,
		workers:  workers,
		logger:   logger.WithField("component", "sync_engine"),
		events:   make(chan Event, eventBuffer),
	}
}

// Events returns the event channel for the current run. Once a run has
// closed its channel the next call hands out a fresh one, so a caller
// looping over several runs can re-subscribe between them.
func (e *Engine) Events() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eventsClosed {
		e.events = make(chan Event, eventBuffer)
		e.eventsClosed = false
	}
	return e.events
}

// GetProgress returns current progress.
func (e *Engine) GetProgress() *Progress {
	if p := e.progress.Load(); p != nil {
		return p.(*Progress)
	}
	return nil
}

// Cancel stops an ongoing run.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelFn != nil {
		e.logger.Info("Cancelling sync")
		e.cancelFn()
	}
}

// NotifyEscalation surfaces a fetch tier change as a run event. Wired
// to the fetch ladder's OnEscalate hook.
func (e *Engine) NotifyEscalation(entry *models.ManifestEntry, tier string) {
	e.emitEvent(Event{
		Type:      EventEscalated,
		Timestamp: time.Now(),
		SourceID:  entry.SourceID,
		Entry:     entry,
		Tier:      tier,
	})
}

// Sync runs a full synchronization for one source. Per-entry failures
// are recorded, never propagated: the returned report accounts for
// every discovered entry, and only source-level problems surface as an
// error.
func (e *Engine) Sync(ctx context.Context, sourceID string, opts Options) (*models.SyncReport, error) {
	src, err := e.registry.Get(sourceID)
	if err != nil {
		return nil, &models.SourceError{Code: models.ErrCodeConfig, SourceID: sourceID, Err: err}
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return nil, models.ErrSyncInProgress
	}
	e.syncing = true
	if e.eventsClosed {
		e.events = make(chan Event, eventBuffer)
		e.eventsClosed = false
	}
	runID := uuid.NewString()
	e.runID = runID

	ctx, cancel := context.WithCancel(ctx)
	e.cancelFn = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.syncing = false
		e.runID = ""
		e.cancelFn = nil
		if !e.eventsClosed {
			close(e.events)
			e.eventsClosed = true
		}
		e.mu.Unlock()
	}()

	ctx = events.WithRunID(events.WithSourceID(ctx, sourceID), runID)
	logger := e.logger.WithFields(map[string]interface{}{
		"source_id": sourceID,
		"run_id":    runID,
	})

	syncReport := &models.SyncReport{
		SourceID:     sourceID,
		RunID:        runID,
		StartedAt:    time.Now().UTC(),
		SkipDownload: opts.SkipDownload,
	}

	e.resetProgress("discovering")
	e.emitEvent(Event{Type: EventRunStarted, Timestamp: time.Now(), SourceID: sourceID})

	logger.WithFields(map[string]interface{}{
		"skip_download": opts.SkipDownload,
		"workers":       e.workerCount(opts),
	}).Info("Starting sync")

	unlock, err := e.state.Lock(sourceID)
	if err != nil {
		return nil, e.failRun(nil, sourceID, &models.SourceError{
			Code: models.ErrCodeState, SourceID: sourceID, Err: err,
		})
	}
	defer unlock()

	st, err := e.loadOrCreateState(sourceID)
	if err != nil {
		return nil, e.failRun(nil, sourceID, &models.SourceError{
			Code: models.ErrCodeState, SourceID: sourceID, Err: err,
		})
	}

	m, err := e.builder.Build(ctx, src, opts.MaxPages)
	if err != nil {
		if _, werr := e.reports.WriteFailure(sourceID, err); werr != nil {
			logger.WithError(werr).Warn("Failed to write failure report")
		}
		if opts.SkipDownload {
			return nil, e.failRun(nil, sourceID, err)
		}
		return nil, e.failRun(st, sourceID, err)
	}
	syncReport.Manifest = m

	for _, notice := range m.Notices {
		logger.Warn(notice)
	}

	if opts.SkipDownload {
		e.setPhase("reporting")
		if _, err := e.reports.WriteManifest(m); err != nil {
			return syncReport, e.failRun(nil, sourceID, &models.SourceError{
				Code: models.ErrCodeStorage, SourceID: sourceID, Err: err,
			})
		}
		syncReport.FinishedAt = time.Now().UTC()
		e.completeRun(sourceID, logger, syncReport)
		return syncReport, nil
	}

	if err := e.adoptUntracked(src, st); err != nil {
		logger.WithError(err).Warn("Untracked file scan failed")
	}

	downloadable := m.Downloadable()
	e.updateProgress(func(p *Progress) {
		p.Phase = "downloading"
		p.Total = len(downloadable)
	})

	syncReport.Results = e.runDownloads(ctx, src, downloadable, st, e.workerCount(opts))

	st.MarkRun(runID)
	st.SetError(nil)
	e.stateMu.Lock()
	err = e.state.Save(sourceID, st)
	e.stateMu.Unlock()
	if err != nil {
		logger.WithError(err).Error("Failed to persist final state")
	}

	if src.Fallback != nil {
		if err := e.writeKnownURLs(src); err != nil {
			logger.WithError(err).Warn("Failed to write known-URLs artifact")
		}
	}

	e.setPhase("reporting")
	if _, err := e.reports.WriteManifest(m); err != nil {
		return syncReport, e.failRun(st, sourceID, &models.SourceError{
			Code: models.ErrCodeStorage, SourceID: sourceID, Err: err,
		})
	}
	if _, err := e.reports.WriteResults(syncReport); err != nil {
		return syncReport, e.failRun(st, sourceID, &models.SourceError{
			Code: models.ErrCodeStorage, SourceID: sourceID, Err: err,
		})
	}

	syncReport.FinishedAt = time.Now().UTC()

	if ctx.Err() != nil {
		e.emitEvent(Event{Type: EventRunFailed, Timestamp: time.Now(), SourceID: sourceID, Error: ctx.Err()})
		return syncReport, ctx.Err()
	}

	e.completeRun(sourceID, logger, syncReport)
	return syncReport, nil
}

// runDownloads dispatches downloadable entries across a bounded worker
// pool. Results stay index-aligned with the entries regardless of
// completion order.
func (e *Engine) runDownloads(ctx context.Context, src *sources.Source, entries []models.ManifestEntry, st *models.SourceState, workers int) []models.DownloadResult {
	results := make([]models.DownloadResult, len(entries))
	if len(entries) == 0 {
		return results
	}
	if workers > len(entries) {
		workers = len(entries)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = e.processEntry(ctx, src, &entries[idx], st)
			}
		}()
	}

dispatch:
	for i := range entries {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	// Entries never dispatched still get a row.
	for i := range results {
		if results[i].Outcome == "" {
			results[i] = models.DownloadResult{
				ResourceURL: entries[i].ResourceURL,
				Outcome:     models.OutcomeFailed,
				ErrorDetail: "not attempted: run cancelled",
			}
		}
	}

	return results
}

// processEntry takes one downloadable entry through fetch, change
// detection, and storage. Every return path produces a result; errors
// never escape.
func (e *Engine) processEntry(ctx context.Context, src *sources.Source, entry *models.ManifestEntry, st *models.SourceState) models.DownloadResult {
	fileName := localFileName(entry.ResourceURL)
	storePath := path.Join(src.ContentDir(), fileName)

	e.emitEvent(Event{Type: EventEntryStarted, Timestamp: time.Now(), SourceID: src.ID, Entry: entry})
	e.updateProgress(func(p *Progress) { p.CurrentURL = entry.ResourceURL })

	record, tracked := e.lookupRecord(st, fileName)

	// Immutable documents never change in place, so a matching remote
	// size is proof enough to skip the fetch entirely.
	if tracked && src.Immutable && record.Size > 0 {
		if exists, _ := e.content.Exists(storePath); exists {
			if size := transport.ContentLengthFor(ctx, e.client, entry.ResourceURL, nil); size == record.Size {
				result := models.DownloadResult{
					ResourceURL: entry.ResourceURL,
					LocalPath:   storePath,
					Outcome:     models.OutcomeSkippedUnchanged,
					Notices:     []string{"remote size matches immutable document"},
				}
				e.finishEntry(src.ID, entry, &result, 0)
				return result
			}
		}
	}

	payload, err := e.fetcher.Fetch(ctx, src, entry)
	if err != nil {
		return e.entryFailure(src.ID, entry, storePath, err)
	}
	defer payload.Body.Close()

	hash, size, written, err := e.content.WriteStreamIfChanged(storePath, payload.Body, 0o644, record.ContentHash)
	if err != nil {
		return e.entryFailure(src.ID, entry, storePath, &models.EntryError{
			Code: models.ErrCodeStorage,
			URL:  entry.ResourceURL,
			Path: storePath,
			Err:  err,
		})
	}

	if !written {
		// Same content as last run; the existing file was left alone.
		result := models.DownloadResult{
			ResourceURL: entry.ResourceURL,
			LocalPath:   storePath,
			Outcome:     models.OutcomeSkippedUnchanged,
			Notices:     payload.Notices,
		}
		e.finishEntry(src.ID, entry, &result, 0)
		return result
	}

	if err := e.commit(st, src.ID, fileName, hash, size, entry.ResourceURL); err != nil {
		return e.entryFailure(src.ID, entry, storePath, fmt.Errorf("save state: %w", err))
	}

	result := models.DownloadResult{
		ResourceURL: entry.ResourceURL,
		LocalPath:   storePath,
		Outcome:     models.OutcomeSuccess,
		Notices:     payload.Notices,
	}
	e.finishEntry(src.ID, entry, &result, size)
	return result
}

func (e *Engine) entryFailure(sourceID string, entry *models.ManifestEntry, storePath string, cause error) models.DownloadResult {
	result := models.DownloadResult{
		ResourceURL: entry.ResourceURL,
		Outcome:     models.OutcomeFailed,
		ErrorDetail: cause.Error(),
	}

	eventType := EventEntryFailed
	if errors.Is(cause, models.ErrManualRequired) {
		result.Outcome = models.OutcomeManualRequired
		eventType = EventEntryManual
	}

	e.logger.WithError(cause).WithFields(map[string]interface{}{
		"source_id": sourceID,
		"url":       entry.ResourceURL,
		"path":      storePath,
	}).Error("Entry failed")

	e.updateProgress(func(p *Progress) {
		p.Processed++
		if result.Outcome == models.OutcomeFailed {
			p.Failures++
		}
	})
	e.emitEvent(Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SourceID:  sourceID,
		Entry:     entry,
		Result:    &result,
		Error:     cause,
	})
	return result
}

func (e *Engine) finishEntry(sourceID string, entry *models.ManifestEntry, result *models.DownloadResult, bytes int64) {
	e.updateProgress(func(p *Progress) {
		p.Processed++
		p.Bytes += bytes
	})

	eventType := EventEntryComplete
	if result.Outcome == models.OutcomeSkippedUnchanged {
		eventType = EventEntrySkipped
	}
	e.emitEvent(Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SourceID:  sourceID,
		Entry:     entry,
		Result:    result,
		Progress:  e.GetProgress(),
	})
}

// adoptUntracked fingerprints files already on disk but absent from the
// state, so a pre-seeded content tree is not re-downloaded.
func (e *Engine) adoptUntracked(src *sources.Source, st *models.SourceState) error {
	infos, err := e.content.ListDir(src.ContentDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	adopted := 0
	for _, info := range infos {
		if info.IsDir {
			continue
		}
		name := path.Base(info.Path)
		if strings.HasPrefix(name, "_") || strings.Contains(name, ".tmp.") {
			continue
		}
		if _, ok := e.lookupRecord(st, name); ok {
			continue
		}

		hash, size, err := e.content.HashFile(path.Join(src.ContentDir(), name))
		if err != nil {
			e.logger.WithError(err).WithField("file", name).Warn("Failed to fingerprint untracked file")
			continue
		}
		e.stateMu.Lock()
		st.Record(name, hash, size, "")
		e.stateMu.Unlock()
		adopted++
	}

	if adopted > 0 {
		e.stateMu.Lock()
		err = e.state.Save(src.ID, st)
		e.stateMu.Unlock()
		if err != nil {
			return fmt.Errorf("save adopted records: %w", err)
		}
		e.logger.WithFields(map[string]interface{}{
			"source_id": src.ID,
			"adopted":   adopted,
		}).Info("Adopted untracked files")
	}

	return nil
}

// writeKnownURLs drops the curated URL list next to the source's
// content so a human can finish the job when automation cannot.
func (e *Engine) writeKnownURLs(src *sources.Source) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s known fallback URLs (last verified %s)\n", src.ID, src.Fallback.VerifiedAt)
	sb.WriteString("# Used when live discovery of the source is blocked.\n")
	if len(src.Pages) > 0 {
		fmt.Fprintf(&sb, "# Source page: %s\n", src.Pages[0])
	}
	sb.WriteString("\n")
	for _, doc := range src.Fallback.Docs {
		sb.WriteString(doc.URL)
		sb.WriteString("\n")
	}

	return e.content.Write(path.Join(src.ContentDir(), "_known-urls.txt"), []byte(sb.String()), 0o644)
}

// Helper methods

func (e *Engine) loadOrCreateState(sourceID string) (*models.SourceState, error) {
	st, err := e.state.Load(sourceID)
	if err == nil {
		return st, nil
	}

	if errors.Is(err, fingerprint.ErrStateNotFound) {
		return models.NewSourceState(sourceID), nil
	}

	return nil, err
}

func (e *Engine) lookupRecord(st *models.SourceState, key string) (models.FingerprintRecord, bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return st.Lookup(key)
}

func (e *Engine) commit(st *models.SourceState, sourceID, key, hash string, size int64, url string) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	st.Record(key, hash, size, url)
	return e.state.Save(sourceID, st)
}

func (e *Engine) workerCount(opts Options) int {
	if opts.Workers > 0 {
		return opts.Workers
	}
	return e.workers
}

func (e *Engine) completeRun(sourceID string, logger *events.Logger, syncReport *models.SyncReport) {
	e.setPhase("completed")
	e.emitEvent(Event{
		Type:      EventRunCompleted,
		Timestamp: time.Now(),
		SourceID:  sourceID,
		Progress:  e.GetProgress(),
	})

	totals := syncReport.Totals()
	logger.WithFields(map[string]interface{}{
		"duration":   syncReport.FinishedAt.Sub(syncReport.StartedAt).Round(time.Millisecond).String(),
		"downloaded": totals[models.OutcomeSuccess],
		"unchanged":  totals[models.OutcomeSkippedUnchanged],
		"failed":     totals[models.OutcomeFailed],
		"manual":     totals[models.OutcomeManualRequired],
	}).Info("Sync completed")
}

func (e *Engine) failRun(st *models.SourceState, sourceID string, err error) error {
	if st != nil {
		st.SetError(err)
		e.stateMu.Lock()
		if saveErr := e.state.Save(sourceID, st); saveErr != nil {
			e.logger.WithError(saveErr).Warn("Failed to record run error in state")
		}
		e.stateMu.Unlock()
	}

	e.emitEvent(Event{Type: EventRunFailed, Timestamp: time.Now(), SourceID: sourceID, Error: err})
	return err
}

func (e *Engine) emitEvent(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.eventsClosed {
		return
	}
	if event.RunID == "" {
		event.RunID = e.runID
	}

	select {
	case e.events <- event:
	default:
		// Channel full, drop event
		e.logger.Debug("Event channel full, dropping event")
	}
}

func (e *Engine) resetProgress(phase string) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()
	e.progress.Store(&Progress{Phase: phase, StartTime: time.Now()})
}

func (e *Engine) setPhase(phase string) {
	e.updateProgress(func(p *Progress) { p.Phase = phase })
}

func (e *Engine) updateProgress(mutate func(*Progress)) {
	e.progressMu.Lock()
	defer e.progressMu.Unlock()

	var next Progress
	if cur, ok := e.progress.Load().(*Progress); ok && cur != nil {
		next = *cur
	}
	mutate(&next)
	e.progress.Store(&next)
}

// localFileName derives the stored filename from a resource URL. Names
// are sanitized; URLs without a file extension are HTML detail pages
// and get one.
func localFileName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "." || name == "/" {
		name = ""
	}

	ext := strings.ToLower(path.Ext(name))
	safe := storage.SanitizeFilename(name)
	if ext == "" {
		safe += ".html"
	}
	return safe
}
