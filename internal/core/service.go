package core

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/TableExport/internal/export"
	"github.com/JonMunkholm/TableExport/internal/history"
)

var (
	// ErrUnknownTable is returned for a table key that is not registered.
	ErrUnknownTable = errors.New("unknown table")

	// ErrExportNotFound is returned for an export id the service does not
	// know, or one that has expired from memory.
	ErrExportNotFound = errors.New("export not found")

	// ErrExportNotComplete is returned when downloading an export that did
	// not finish successfully.
	ErrExportNotComplete = errors.New("export not complete")

	// ErrInvalidRequest is returned by StartExport for request overrides
	// outside the configured limits.
	ErrInvalidRequest = errors.New("invalid export request")
)

// ServiceConfig holds the export settings the service applies to every job.
// Zero values fall back to the export package defaults.
type ServiceConfig struct {
	OutputDir       string
	ChunkSize       int
	ReservedThreads int
	Workers         int
	// MaxWorkers caps per-request worker overrides and Workers. Zero uses
	// GOMAXPROCS.
	MaxWorkers      int
	Partial         export.PartialPolicy
	Timeout         time.Duration
	MaxConcurrent   int
	MaxWaitTime     time.Duration

	// ResultRetention is how long finished jobs stay queryable in memory.
	ResultRetention time.Duration
}

// HistoryStore persists finished exports.
type HistoryStore interface {
	Record(ctx context.Context, e history.Entry) error
	List(ctx context.Context, tableKey string, limit int) ([]history.Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// ServiceOption configures optional service dependencies.
type ServiceOption func(*Service)

// WithHistory records every finished export in h.
func WithHistory(h HistoryStore) ServiceOption {
	return func(s *Service) { s.history = h }
}

// WithLimiter replaces the limiter built from MaxConcurrent and MaxWaitTime.
// Use it when the limiter must exist before the service, e.g. for metrics.
func WithLimiter(l *ExportLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics updates m as exports start and finish.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// Service runs export jobs against registered tables.
type Service struct {
	cfg     ServiceConfig
	limiter *ExportLimiter
	history HistoryStore
	metrics *Metrics

	mu      sync.RWMutex
	exports map[string]*activeExport
}

// NewService creates a Service. Output files go under cfg.OutputDir.
func NewService(cfg ServiceConfig, opts ...ServiceOption) *Service {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "exports"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = 30 * time.Minute
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.GOMAXPROCS(0)
	}

	s := &Service{
		cfg:     cfg,
		limiter: NewExportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		exports: make(map[string]*activeExport),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxWorkers returns the largest worker count a request may ask for.
func (s *Service) MaxWorkers() int { return s.cfg.MaxWorkers }

// Limiter returns the service's export limiter, for metrics wiring.
func (s *Service) Limiter() *ExportLimiter { return s.limiter }

// ListTables returns information about all registered tables.
func (s *Service) ListTables() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// ListTablesByGroup returns tables organized by group.
func (s *Service) ListTablesByGroup() map[string][]TableInfo {
	result := make(map[string][]TableInfo)
	for _, group := range Groups() {
		for _, def := range ByGroup(group) {
			result[group] = append(result[group], def.Info)
		}
	}
	return result
}

// ListExports returns the progress of every export still held in memory,
// newest first.
func (s *Service) ListExports() []ExportProgress {
	s.mu.RLock()
	list := make([]ExportProgress, 0, len(s.exports))
	for _, ex := range s.exports {
		list = append(list, ex.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	return list
}

// History returns persisted exports, newest first. It returns nil when the
// service has no history store.
func (s *Service) History(ctx context.Context, tableKey string, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, tableKey, limit)
}

// ExportLimiterStatus returns the current limiter state.
func (s *Service) ExportLimiterStatus() ExportLimiterStatus {
	return s.limiter.Status()
}

// WaitForExports blocks until running exports finish or ctx is done.
func (s *Service) WaitForExports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// CancelAll cancels every running export. Used on shutdown after the grace
// period runs out.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ex := range s.exports {
		ex.cancel()
	}
}
