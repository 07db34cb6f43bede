package export

import (
	"context"
	"io"
	"strings"
	"testing"
)

// ============================================================================
// Escaping Benchmarks
// ============================================================================

// BenchmarkEscapeField benchmarks the per-cell hot path.
func BenchmarkEscapeField(b *testing.B) {
	testCases := []string{
		"plain",
		"12345",
		"has,comma",
		"line\nbreak",
		`say "hi"`,
		strings.Repeat("x", 256),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			EscapeField(tc)
		}
	}
}

// BenchmarkEscapeField_Plain benchmarks the most common case: nothing to quote.
func BenchmarkEscapeField_Plain(b *testing.B) {
	for i := 0; i < b.N; i++ {
		EscapeField("Texture2D")
	}
}

// ============================================================================
// Pipeline Benchmarks
// ============================================================================

func benchmarkRun(b *testing.B, rows int64, opts Options) {
	table := newGrid(rows)
	opts.Logger = discardLogger()
	opts.OpenSink = func(string) (io.WriteCloser, error) { return nopSink{io.Discard}, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := New(table, opts)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.Run(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun_DriverOnly measures the single-threaded baseline.
func BenchmarkRun_DriverOnly(b *testing.B) {
	benchmarkRun(b, 10_000, Options{Path: "bench.csv", Workers: -1})
}

// BenchmarkRun_Workers measures the default worker pool.
func BenchmarkRun_Workers(b *testing.B) {
	benchmarkRun(b, 10_000, Options{Path: "bench.csv"})
}

// BenchmarkRun_SmallChunks stresses the reorder buffer.
func BenchmarkRun_SmallChunks(b *testing.B) {
	benchmarkRun(b, 10_000, Options{Path: "bench.csv", ChunkSize: 1, Workers: 4})
}

// BenchmarkPartition benchmarks splitting a large table.
func BenchmarkPartition(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Partition(1_000_000, DefaultChunkSize, "a,b,c\n")
	}
}

type nopSink struct{ io.Writer }

func (nopSink) Close() error { return nil }
