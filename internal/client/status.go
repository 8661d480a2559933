package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"

	"github.com/ColonelPanicX/comply-with-me/internal/fingerprint"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// SourceStatus compares a source's content tree against its recorded
// fingerprints.
type SourceStatus struct {
	SourceID     string
	Label        string
	Fresh        int
	Modified     int
	Untracked    int
	Missing      []string // tracked paths absent from disk
	DiskBytes    int64
	LastRunID    string
	LastSyncTime time.Time
	LastError    string
	Adopted      int
}

// Files returns the number of documents present on disk.
func (s *SourceStatus) Files() int {
	return s.Fresh + s.Modified + s.Untracked + s.Adopted
}

// Status inspects one source's local tree without touching state.
func (c *Client) Status(ctx context.Context, sourceID string) (*SourceStatus, error) {
	src, err := c.Sources.Get(sourceID)
	if err != nil {
		return nil, err
	}
	return c.statusFor(ctx, src, false)
}

// StatusAll inspects every registered source.
func (c *Client) StatusAll(ctx context.Context) ([]*SourceStatus, error) {
	var statuses []*SourceStatus
	for _, id := range c.Sources.IDs() {
		if err := ctx.Err(); err != nil {
			return statuses, err
		}

		st, err := c.Status(ctx, id)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Adopt fingerprints untracked files in a source's tree so a later sync
// treats them as already downloaded.
func (c *Client) Adopt(ctx context.Context, sourceID string) (*SourceStatus, error) {
	src, err := c.Sources.Get(sourceID)
	if err != nil {
		return nil, err
	}

	unlock, err := c.state.Lock(src.ID)
	if err != nil {
		return nil, fmt.Errorf("lock state for %s: %w", src.ID, err)
	}
	defer unlock()

	return c.statusFor(ctx, src, true)
}

type adoptCandidate struct {
	key  string
	hash string
	size int64
}

func (c *Client) statusFor(ctx context.Context, src *sources.Source, adopt bool) (*SourceStatus, error) {
	st, err := c.state.Load(src.ID)
	if err != nil {
		if !errors.Is(err, fingerprint.ErrStateNotFound) {
			return nil, fmt.Errorf("load state for %s: %w", src.ID, err)
		}
		st = models.NewSourceState(src.ID)
	}

	status := &SourceStatus{
		SourceID:     src.ID,
		Label:        src.Label,
		LastRunID:    st.LastRunID,
		LastSyncTime: st.LastSyncTime,
		LastError:    st.LastError,
	}

	root := filepath.Join(c.content.BaseDir(), filepath.FromSlash(src.ContentDir()))
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat content dir: %w", err)
		}
		status.Missing = trackedKeys(st)
		return status, nil
	}

	// fastwalk dispatches callbacks from several goroutines.
	var (
		mu        sync.Mutex
		seen      = make(map[string]bool)
		adoptable []adoptCandidate
	)

	conf := fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)

		// Run artifacts and interrupted writes are not documents.
		name := path.Base(key)
		if strings.HasPrefix(name, "_") || strings.Contains(name, ".tmp.") {
			return nil
		}

		hash, size, err := c.content.HashFile(path.Join(src.ContentDir(), key))
		if err != nil {
			c.logger.WithError(err).WithField("file", key).Warn("Failed to hash file")
			return nil
		}

		mu.Lock()
		defer mu.Unlock()

		seen[key] = true
		status.DiskBytes += size

		rec, tracked := st.Lookup(key)
		switch {
		case !tracked:
			status.Untracked++
			if adopt {
				adoptable = append(adoptable, adoptCandidate{key: key, hash: hash, size: size})
			}
		case rec.ContentHash == hash:
			status.Fresh++
		default:
			status.Modified++
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk content tree: %w", walkErr)
	}

	for _, key := range trackedKeys(st) {
		if !seen[key] {
			status.Missing = append(status.Missing, key)
		}
	}
	sort.Strings(status.Missing)

	if adopt && len(adoptable) > 0 {
		for _, cand := range adoptable {
			st.Record(cand.key, cand.hash, cand.size, "")
		}
		if err := c.state.Save(src.ID, st); err != nil {
			return nil, fmt.Errorf("save adopted records: %w", err)
		}

		status.Adopted = len(adoptable)
		status.Untracked = 0
		c.logger.WithFields(map[string]interface{}{
			"source":  src.ID,
			"adopted": status.Adopted,
		}).Info("Adopted untracked files")
	}

	return status, nil
}

func trackedKeys(st *models.SourceState) []string {
	keys := make([]string, 0, len(st.Records))
	for key := range st.Records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
