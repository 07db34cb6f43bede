package export

import "sync/atomic"

// Progress is a snapshot of an export's position.
type Progress struct {
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
	Label     string `json:"label"`
}

// Percent returns completion as 0-100. An empty export is 100% complete.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// Done reports whether every row has been written.
func (p Progress) Done() bool { return p.Completed >= p.Total }

// ProgressTracker counts rows written. Only the writer advances it; any
// goroutine may read it.
type ProgressTracker struct {
	completed atomic.Int64
	total     atomic.Int64
	label     string
	listener  func(Progress)
}

// NewProgressTracker returns a tracker reporting to listener, which may be nil.
func NewProgressTracker(label string, listener func(Progress)) *ProgressTracker {
	return &ProgressTracker{label: label, listener: listener}
}

// SetTotal resets the tracker for a run over total rows.
func (t *ProgressTracker) SetTotal(total int64) {
	t.completed.Store(0)
	t.total.Store(total)
	t.notify()
}

// Advance records n more rows written.
func (t *ProgressTracker) Advance(n int64) {
	t.completed.Add(n)
	t.notify()
}

// Completed returns the number of rows written so far.
func (t *ProgressTracker) Completed() int64 { return t.completed.Load() }

// Total returns the number of rows in the run.
func (t *ProgressTracker) Total() int64 { return t.total.Load() }

// Snapshot returns the current progress.
func (t *ProgressTracker) Snapshot() Progress {
	return Progress{
		Completed: t.completed.Load(),
		Total:     t.total.Load(),
		Label:     t.label,
	}
}

func (t *ProgressTracker) notify() {
	if t.listener != nil {
		t.listener(t.Snapshot())
	}
}
