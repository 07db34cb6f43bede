package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultReservedThreads is how many processors are left for the rest of the
// process when sizing the worker pool.
const DefaultReservedThreads = 3

// PartialPolicy decides what happens to a destination file left incomplete
// by cancellation or an I/O failure.
type PartialPolicy string

const (
	PartialDelete PartialPolicy = "delete"
	PartialKeep   PartialPolicy = "keep"
)

// ParsePartialPolicy accepts "delete", "keep" or "" (delete).
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch PartialPolicy(s) {
	case "", PartialDelete:
		return PartialDelete, nil
	case PartialKeep:
		return PartialKeep, nil
	}
	return "", configError("unknown partial file policy %q", s)
}

// Options configures a single export run.
type Options struct {
	// Path is the destination file. Required.
	Path string

	// ChunkSize is the number of rows per work unit. Zero uses DefaultChunkSize.
	ChunkSize int

	// ReservedThreads is subtracted from GOMAXPROCS to size the worker pool.
	// Zero uses DefaultReservedThreads; negative reserves nothing.
	ReservedThreads int

	// Workers overrides the dedicated worker count. Zero derives it from
	// GOMAXPROCS, negative runs with no dedicated workers. The count is
	// capped at the number of work units.
	Workers int

	// Label is carried in every progress report.
	Label string

	// Partial is applied when a run fails or is cancelled. Empty means delete.
	Partial PartialPolicy

	// OnProgress is called from the writer goroutine after each written unit.
	OnProgress func(Progress)

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// OpenSink replaces os.Create for the destination. Partial files are only
	// removed for the default sink.
	OpenSink func(path string) (io.WriteCloser, error)
}

// Result summarizes a finished, failed or cancelled run.
type Result struct {
	Path           string        `json:"path"`
	Label          string        `json:"label"`
	TotalRows      int64         `json:"total_rows"`
	RowsWritten    int64         `json:"rows_written"`
	Units          int           `json:"units"`
	// Workers counts dedicated workers only; the goroutine calling Run
	// renders too, so zero means a single-threaded run.
	Workers        int           `json:"workers"`
	BytesWritten   int64         `json:"bytes_written"`
	RenderErrors   int64         `json:"render_errors"`
	Duration       time.Duration `json:"duration"`
	PartialRemoved bool          `json:"partial_removed"`
}

// Pipeline exports one table to one file. All queues, buffers and counters
// belong to the instance, so independent exports may run side by side.
type Pipeline struct {
	table   Table
	opts    Options
	workers int
	logger  *slog.Logger

	queue        *WorkQueue
	buffer       *ReorderBuffer
	tracker      *ProgressTracker
	renderErrors atomic.Int64
	started      atomic.Bool
}

// New validates opts and prepares a pipeline. Nothing is opened until Run.
func New(table Table, opts Options) (*Pipeline, error) {
	if table == nil {
		return nil, configError("table is nil")
	}
	if opts.Path == "" {
		return nil, configError("destination path is empty")
	}
	if opts.ChunkSize < 0 {
		return nil, configError("chunk size %d is negative", opts.ChunkSize)
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	partial, err := ParsePartialPolicy(string(opts.Partial))
	if err != nil {
		return nil, err
	}
	opts.Partial = partial

	workers := opts.Workers
	switch {
	case workers == 0:
		workers = DefaultWorkers(opts.ReservedThreads)
	case workers < 0:
		workers = 0
	}
	// Dedicated workers beyond the unit count would never get a unit.
	workers = min(workers, unitCount(table.RowCount(), opts.ChunkSize))

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		table:   table,
		opts:    opts,
		workers: workers,
		logger:  logger.With("path", opts.Path),
		queue:   &WorkQueue{},
		buffer:  NewReorderBuffer(),
		tracker: NewProgressTracker(opts.Label, opts.OnProgress),
	}, nil
}

func unitCount(rows int64, chunkSize int) int {
	if rows <= 0 {
		return 0
	}
	size := int64(chunkSize)
	return int(min((rows+size-1)/size, math.MaxInt32))
}

// DefaultWorkers is the dedicated worker count used when Options.Workers is
// zero. reserved follows Options.ReservedThreads: zero means
// DefaultReservedThreads, negative reserves nothing.
func DefaultWorkers(reserved int) int {
	switch {
	case reserved == 0:
		reserved = DefaultReservedThreads
	case reserved < 0:
		reserved = 0
	}
	return WorkerCount(runtime.GOMAXPROCS(0), reserved)
}

// WorkerCount returns the number of dedicated render workers for the given
// parallelism: max(1, parallelism-reserved).
func WorkerCount(parallelism, reserved int) int {
	return max(1, parallelism-reserved)
}

// Workers returns the number of dedicated workers Run will start, not
// counting the calling goroutine, which renders as well.
func (p *Pipeline) Workers() int { return p.workers }

// Progress returns the current progress. Safe to call from any goroutine.
func (p *Pipeline) Progress() Progress { return p.tracker.Snapshot() }

// Run performs the export. It blocks until every row is written, ctx is
// cancelled, or the destination fails. The returned Result is non-nil
// whenever the destination was opened.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	start := time.Now()

	total := p.table.RowCount()
	if total < 0 {
		return nil, configError("table reports %d rows", total)
	}
	header := Header(p.table)
	units := Partition(total, p.opts.ChunkSize, header)
	p.tracker.SetTotal(total)
	p.queue.Push(units...)

	sink, err := p.open()
	if err != nil {
		return nil, err
	}

	// The row count may have moved since New.
	workers := min(p.workers, len(units))

	p.logger.Info("export started",
		"label", p.opts.Label,
		"rows", total,
		"units", len(units),
		"workers", workers,
	)

	w := newSequentialWriter(p.opts.Path, header, sink, p.buffer, p.tracker, p.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.run(gctx) })
	for id := 1; id <= workers; id++ {
		wk := p.newWorker(id)
		g.Go(func() error { return wk.run(gctx) })
	}

	p.newWorker(0).run(gctx)

	runErr := g.Wait()
	if closeErr := w.close(); runErr == nil {
		runErr = closeErr
	}

	res := &Result{
		Path:         p.opts.Path,
		Label:        p.opts.Label,
		TotalRows:    total,
		RowsWritten:  p.tracker.Completed(),
		Units:        len(units),
		Workers:      workers,
		BytesWritten: w.bytesWritten(),
		RenderErrors: p.renderErrors.Load(),
		Duration:     time.Since(start),
	}

	if runErr != nil {
		res.PartialRemoved = p.discardPartial()
		p.logFailure(runErr, res)
		return res, runErr
	}

	p.logger.Info("export completed",
		"label", p.opts.Label,
		"rows", res.RowsWritten,
		"bytes", res.BytesWritten,
		"render_errors", res.RenderErrors,
		"duration", res.Duration,
	)
	return res, nil
}

// Export builds a pipeline and runs it.
func Export(ctx context.Context, table Table, opts Options) (*Result, error) {
	p, err := New(table, opts)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

func (p *Pipeline) newWorker(id int) *worker {
	return &worker{
		id:           id,
		table:        p.table,
		queue:        p.queue,
		buffer:       p.buffer,
		renderErrors: &p.renderErrors,
		logger:       p.logger,
	}
}

func (p *Pipeline) open() (io.WriteCloser, error) {
	if p.opts.OpenSink != nil {
		sink, err := p.opts.OpenSink(p.opts.Path)
		if err != nil {
			return nil, &IOError{Op: "open", Path: p.opts.Path, Err: err}
		}
		return sink, nil
	}

	if dir := filepath.Dir(p.opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &IOError{Op: "open", Path: p.opts.Path, Err: err}
		}
	}
	f, err := os.Create(p.opts.Path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: p.opts.Path, Err: err}
	}
	return f, nil
}

func (p *Pipeline) discardPartial() bool {
	if p.opts.Partial != PartialDelete || p.opts.OpenSink != nil {
		return false
	}
	if err := os.Remove(p.opts.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove partial export", "error", err)
		return false
	}
	return true
}

func (p *Pipeline) logFailure(err error, res *Result) {
	attrs := []any{
		"label", p.opts.Label,
		"rows_written", res.RowsWritten,
		"total_rows", res.TotalRows,
		"partial_removed", res.PartialRemoved,
	}
	if errors.Is(err, ErrCancelled) {
		p.logger.Warn("export cancelled", attrs...)
		return
	}
	p.logger.Error("export failed", append(attrs, "error", err)...)
}

func (r *Result) String() string {
	return fmt.Sprintf("%s: %d/%d rows, %d bytes in %s", r.Path, r.RowsWritten, r.TotalRows, r.BytesWritten, r.Duration.Round(time.Millisecond))
}
