package benchmark

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/storage"
	"github.com/ColonelPanicX/comply-with-me/test/testutil"
)

var benchSizes = []int{
	1024,     // 1KB
	10240,    // 10KB
	102400,   // 100KB
	1048576,  // 1MB
	10485760, // 10MB
}

func newBenchStore(b *testing.B) *storage.LocalStore {
	b.Helper()
	store, err := storage.NewLocalStore(b.TempDir(), testutil.NewTestLogger())
	if err != nil {
		b.Fatal(err)
	}
	return store
}

func BenchmarkContentStoreWrite(b *testing.B) {
	store := newBenchStore(b)

	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("%dKB", size/1024), func(b *testing.B) {
			data := make([]byte, size)
			rand.Read(data)

			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(size))

			for i := 0; i < b.N; i++ {
				path := fmt.Sprintf("bench/doc_%d.pdf", i)
				if err := store.Write(path, data, 0644); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkContentStoreWriteStream(b *testing.B) {
	store := newBenchStore(b)

	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("%dKB", size/1024), func(b *testing.B) {
			data := make([]byte, size)
			rand.Read(data)

			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(size))

			for i := 0; i < b.N; i++ {
				path := fmt.Sprintf("bench/stream_%d.pdf", i)
				if _, _, err := store.WriteStream(path, bytes.NewReader(data), 0644); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkWriteStreamIfChanged compares the two outcomes of the
// change-detecting write: content that differs from the prior hash
// (full write plus rename) versus content that matches it (hash only,
// existing file untouched). The unchanged path is what every repeat
// sync of a stable source pays per document.
func BenchmarkWriteStreamIfChanged(b *testing.B) {
	data := make([]byte, 102400)
	rand.Read(data)

	b.Run("Changed", func(b *testing.B) {
		store := newBenchStore(b)

		b.ResetTimer()
		b.ReportAllocs()
		b.SetBytes(int64(len(data)))

		for i := 0; i < b.N; i++ {
			path := fmt.Sprintf("bench/changed_%d.pdf", i)
			_, _, written, err := store.WriteStreamIfChanged(path, bytes.NewReader(data), 0644, "stale-hash")
			if err != nil {
				b.Fatal(err)
			}
			if !written {
				b.Fatal("expected a write")
			}
		}
	})

	b.Run("Unchanged", func(b *testing.B) {
		store := newBenchStore(b)

		path := "bench/stable.pdf"
		hash, _, err := store.WriteStream(path, bytes.NewReader(data), 0644)
		if err != nil {
			b.Fatal(err)
		}

		b.ResetTimer()
		b.ReportAllocs()
		b.SetBytes(int64(len(data)))

		for i := 0; i < b.N; i++ {
			_, _, written, err := store.WriteStreamIfChanged(path, bytes.NewReader(data), 0644, hash)
			if err != nil {
				b.Fatal(err)
			}
			if written {
				b.Fatal("expected the existing file to be kept")
			}
		}
	})
}

func BenchmarkHashFile(b *testing.B) {
	store := newBenchStore(b)

	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("%dKB", size/1024), func(b *testing.B) {
			data := make([]byte, size)
			rand.Read(data)

			path := fmt.Sprintf("bench/hash_%d.pdf", size)
			if err := store.Write(path, data, 0644); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(size))

			for i := 0; i < b.N; i++ {
				if _, _, err := store.HashFile(path); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkContentStoreOperations(b *testing.B) {
	store := newBenchStore(b)

	data := make([]byte, 1024)
	rand.Read(data)

	b.Run("Exists", func(b *testing.B) {
		for i := 0; i < 100; i++ {
			path := fmt.Sprintf("bench/exists_%d.pdf", i)
			if err := store.Write(path, data, 0644); err != nil {
				b.Fatal(err)
			}
		}

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			path := fmt.Sprintf("bench/exists_%d.pdf", i%100)
			if _, err := store.Exists(path); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Stat", func(b *testing.B) {
		path := "bench/stat_target.pdf"
		if err := store.Write(path, data, 0644); err != nil {
			b.Fatal(err)
		}

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			if _, err := store.Stat(path); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Delete", func(b *testing.B) {
		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			path := fmt.Sprintf("bench/delete_%d.pdf", i)
			if err := store.Write(path, data, 0644); err != nil {
				b.Fatal(err)
			}
			if err := store.Delete(path); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkConcurrentContentAccess(b *testing.B) {
	store := newBenchStore(b)

	data := make([]byte, 1024)
	rand.Read(data)

	for i := 0; i < 100; i++ {
		path := fmt.Sprintf("bench/concurrent_%d.pdf", i)
		if err := store.Write(path, data, 0644); err != nil {
			b.Fatal(err)
		}
	}

	b.Run("ConcurrentReads", func(b *testing.B) {
		b.ResetTimer()
		b.ReportAllocs()

		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				path := fmt.Sprintf("bench/concurrent_%d.pdf", i%100)
				if _, err := store.Read(path); err != nil {
					b.Fatal(err)
				}
				i++
			}
		})
	})

	b.Run("ConcurrentHashes", func(b *testing.B) {
		b.ResetTimer()
		b.ReportAllocs()

		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				path := fmt.Sprintf("bench/concurrent_%d.pdf", i%100)
				if _, _, err := store.HashFile(path); err != nil {
					b.Fatal(err)
				}
				i++
			}
		})
	})

	b.Run("ConcurrentStreamWrites", func(b *testing.B) {
		b.ResetTimer()
		b.ReportAllocs()
		b.SetBytes(int64(len(data)))

		b.RunParallel(func(pb *testing.PB) {
			i := 0
			for pb.Next() {
				// Distinct paths per iteration: the worker pool never
				// writes the same document twice in one run.
				path := fmt.Sprintf("bench/parallel/doc_%d_%d.pdf", i, len(data))
				if _, _, err := store.WriteStream(path, bytes.NewReader(data), 0644); err != nil {
					b.Fatal(err)
				}
				i++
			}
		})
	})
}

func BenchmarkPathSanitization(b *testing.B) {
	store := newBenchStore(b)

	data := make([]byte, 1024)
	rand.Read(data)

	// Shapes that exercise the sanitizer's normal path rather than its
	// rejections
	paths := []string{
		"fedramp/FedRAMP Security Controls Baseline.xlsx",
		"disa-stig/U_SRG-STIG_Library_2026_01.zip",
		"nist-sp/NIST.SP.800-53r5.pdf",
		"cisa-bod/bod-25-01-implementation-guidance.pdf",
	}

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		path := fmt.Sprintf("%s_%d", paths[i%len(paths)], i)
		if err := store.Write(path, data, 0644); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBlockPageSniff(b *testing.B) {
	pdf := testutil.PDFBytes("benchmark fixture")
	blockPage := []byte(testutil.BlockPageHTML)
	plain := bytes.Repeat([]byte("ordinary text content "), 50)

	cases := []struct {
		name        string
		contentType string
		head        []byte
	}{
		{"PDF", "application/pdf", pdf},
		{"BlockPage", "text/html", blockPage},
		{"PlainText", "text/plain", plain},
	}

	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(len(tc.head)))

			for i := 0; i < b.N; i++ {
				models.IsBlockPage("docs/sample.pdf", tc.contentType, tc.head)
			}
		})
	}
}

// BenchmarkRealisticSyncWorkload writes and re-hashes a representative
// set of compliance documents, approximating the storage traffic of one
// full sync followed by a verification pass.
func BenchmarkRealisticSyncWorkload(b *testing.B) {
	store := newBenchStore(b)

	files := map[string][]byte{
		"fedramp/security-baseline.pdf":  testutil.SampleDocuments["security-baseline.pdf"],
		"fedramp/control-catalog.pdf":    testutil.SampleDocuments["control-catalog.pdf"],
		"fedramp/assessment-plan.pdf":    testutil.SampleDocuments["assessment-plan.pdf"],
		"fedramp/poam-template.xlsx":     testutil.SampleDocuments["poam-template.xlsx"],
		"disa-stig/stig-library.zip":     testutil.SampleDocuments["stig-library.zip"],
		"disa-stig/srg-stig-catalog.pdf": testutil.PDFBytes("srg catalog"),
	}

	totalSize := 0
	for _, data := range files {
		totalSize += len(data)
	}

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(totalSize))

	for i := 0; i < b.N; i++ {
		for path, data := range files {
			uniquePath := fmt.Sprintf("%s_%d", path, i)
			if _, _, err := store.WriteStream(uniquePath, bytes.NewReader(data), 0644); err != nil {
				b.Fatal(err)
			}
		}

		for path := range files {
			uniquePath := fmt.Sprintf("%s_%d", path, i)
			if _, _, err := store.HashFile(uniquePath); err != nil {
				b.Fatal(err)
			}
		}
	}
}
