package storage_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/storage"
)

func TestAtomicWrites(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	t.Run("concurrent writes different files", func(t *testing.T) {
		var wg sync.WaitGroup
		errors := make(chan error, 10)

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()

				// Separate store per goroutine to avoid logger races
				var buf bytes.Buffer
				logger := events.NewTestLogger(events.DebugLevel, "json", &buf)
				concurrentStore, err := storage.NewLocalStore(tmpDir, logger)
				if err != nil {
					errors <- err
					return
				}

				path := fmt.Sprintf("concurrent-%d.pdf", n)
				data := fmt.Sprintf("content-%d", n)

				if err := concurrentStore.Write(path, []byte(data), 0644); err != nil {
					errors <- err
				}
			}(i)
		}

		wg.Wait()
		close(errors)

		for err := range errors {
			t.Errorf("Write error: %v", err)
		}

		for i := 0; i < 10; i++ {
			path := fmt.Sprintf("concurrent-%d.pdf", i)
			data, err := store.Read(path)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("content-%d", i), string(data))
		}
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		require.NoError(t, store.Write("stig/library.zip", []byte("march release"), 0644))
		require.NoError(t, store.Write("stig/library.zip", []byte("april release"), 0644))

		data, err := store.Read("stig/library.zip")
		require.NoError(t, err)
		assert.Equal(t, "april release", string(data))
	})

	t.Run("stream write with size limit", func(t *testing.T) {
		smallData := strings.NewReader(strings.Repeat("a", 1024))
		_, _, err := store.WriteStream("small.pdf", smallData, 0644)
		assert.NoError(t, err)

		store.SetMaxFileSize(1024)
		largeData := strings.NewReader(strings.Repeat("b", 2048))
		_, _, err = store.WriteStream("large.pdf", largeData, 0644)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "too large")

		// Oversized file must not land in the tree
		exists, _ := store.Exists("large.pdf")
		assert.False(t, exists)
	})

	t.Run("write failure cleanup", func(t *testing.T) {
		err := store.EnsureDir("blocker")
		require.NoError(t, err)

		err = store.Write("blocker", []byte("data"), 0644)
		assert.Error(t, err)

		files, err := store.ListDir("")
		require.NoError(t, err)

		for _, file := range files {
			assert.False(t, strings.Contains(file.Path, ".tmp."),
				"Found temp file: %s", file.Path)
		}
	})
}

func TestStreamHashing(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	content := strings.Repeat("NIST SP 800-53 rev 5 ", 512)
	sum := sha256.Sum256([]byte(content))
	wantHash := hex.EncodeToString(sum[:])

	hash, size, err := store.WriteStream("nist/sp-800-53.pdf", strings.NewReader(content), 0644)
	require.NoError(t, err)
	assert.Equal(t, wantHash, hash)
	assert.Equal(t, int64(len(content)), size)

	// HashFile must agree with the hash computed during streaming
	gotHash, gotSize, err := store.HashFile("nist/sp-800-53.pdf")
	require.NoError(t, err)
	assert.Equal(t, wantHash, gotHash)
	assert.Equal(t, int64(len(content)), gotSize)
}

func TestDirectoryOperations(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	t.Run("create nested directories", func(t *testing.T) {
		err := store.EnsureDir("a/b/c/d/e")
		assert.NoError(t, err)

		for _, dir := range []string{"a", "a/b", "a/b/c", "a/b/c/d", "a/b/c/d/e"} {
			info, err := store.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir)
		}
	})

	t.Run("clean empty directories", func(t *testing.T) {
		err := store.Write("cleanup/sub/file.pdf", []byte("data"), 0644)
		require.NoError(t, err)

		err = store.Delete("cleanup/sub/file.pdf")
		require.NoError(t, err)

		exists, _ := store.Exists("cleanup/sub")
		assert.False(t, exists)
		exists, _ = store.Exists("cleanup")
		assert.False(t, exists)
	})
}

func TestStreamOperations(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)

	t.Run("write and read stream", func(t *testing.T) {
		content := strings.Repeat("Hello World! ", 1000)
		reader := strings.NewReader(content)

		_, size, err := store.WriteStream("stream-test.pdf", reader, 0644)
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), size)

		data, err := store.Read("stream-test.pdf")
		require.NoError(t, err)
		assert.Equal(t, content, string(data))

		info, err := store.Stat("stream-test.pdf")
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), info.Size)
	})

	t.Run("write stream error handling", func(t *testing.T) {
		reader := &failingReader{failAt: 100}

		_, _, err := store.WriteStream("fail-test.pdf", reader, 0644)
		assert.Error(t, err)

		// Partial download must not exist
		exists, _ := store.Exists("fail-test.pdf")
		assert.False(t, exists)
	})
}

// failingReader simulates IO errors during stream writing
type failingReader struct {
	read   int
	failAt int
}

func (r *failingReader) Read(p []byte) (n int, err error) {
	if r.read >= r.failAt {
		return 0, fmt.Errorf("simulated read error")
	}

	toRead := len(p)
	if r.read+toRead > r.failAt {
		toRead = r.failAt - r.read
	}

	for i := 0; i < toRead; i++ {
		p[i] = 'x'
	}

	r.read += toRead
	return toRead, nil
}
