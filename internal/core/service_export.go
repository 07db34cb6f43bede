package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/TableExport/internal/export"
	"github.com/JonMunkholm/TableExport/internal/history"
	"github.com/JonMunkholm/TableExport/internal/logging"
)

// validateRequest rejects overrides that would let one caller claim more
// than the configured worker budget.
func (s *Service) validateRequest(req ExportRequest) error {
	if req.ChunkSize < 0 {
		return fmt.Errorf("%w: chunk size %d is negative", ErrInvalidRequest, req.ChunkSize)
	}
	if req.Workers > s.cfg.MaxWorkers {
		return fmt.Errorf("%w: %d workers exceeds the maximum of %d", ErrInvalidRequest, req.Workers, s.cfg.MaxWorkers)
	}
	return nil
}

type activeExport struct {
	id     string
	def    TableDefinition
	req    ExportRequest
	path   string
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	mu        sync.Mutex
	progress  ExportProgress
	result    *ExportResult
	listeners []chan ExportProgress
}

// StartExport begins an asynchronous export and returns its id immediately.
// Use SubscribeProgress for updates and GetExportResult for the outcome.
//
// Returns ErrTooManyExports if no export slot frees up within the configured
// wait time.
func (s *Service) StartExport(ctx context.Context, req ExportRequest) (string, error) {
	def, ok := Get(req.TableKey)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, req.TableKey)
	}
	if err := s.validateRequest(req); err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	id := uuid.New().String()
	started := time.Now()
	label := req.Label
	if label == "" {
		label = fmt.Sprintf("Exporting %s...", def.Info.Label)
	}
	fileName := fmt.Sprintf("%s_%s.csv", def.Info.Key, started.Format("20060102_150405"))

	exportCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	ex := &activeExport{
		id:     id,
		def:    def,
		req:    req,
		path:   filepath.Join(s.cfg.OutputDir, id, fileName),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logging.WithFields(logging.ContextWithExport(ctx, id, def.Info.Key),
			"client_ip", ClientIPFromContext(ctx),
		),
		progress: ExportProgress{
			ExportID:  id,
			TableKey:  def.Info.Key,
			Label:     label,
			Phase:     PhaseQueued,
			StartedAt: started,
		},
	}

	s.mu.Lock()
	s.exports[id] = ex
	s.mu.Unlock()

	s.metrics.exportStarted()

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				ex.logger.Error("panic in export", "panic", r)
				s.finish(ex, &ExportResult{
					ExportID:   id,
					TableKey:   def.Info.Key,
					Label:      label,
					Phase:      PhaseFailed,
					Path:       ex.path,
					FileName:   filepath.Base(ex.path),
					StartedAt:  started,
					FinishedAt: time.Now(),
					Duration:   time.Since(started),
					Error:      fmt.Sprintf("internal error: %v", r),
					ErrorCode:  defaultMessage.Code,
				})
			}
		}()
		s.runExport(exportCtx, ex)
	}()

	return id, nil
}

func (s *Service) runExport(ctx context.Context, ex *activeExport) {
	started := ex.snapshot().StartedAt
	ex.logger.Info("export started", "path", ex.path)

	ex.update(func(p *ExportProgress) { p.Phase = PhaseLoading })
	table, err := ex.def.Open(ctx)
	if err != nil {
		ex.logger.Error("failed to open table", "error", err)
		s.finish(ex, failedResult(ex, started, nil, err))
		return
	}

	ex.update(func(p *ExportProgress) {
		p.Phase = PhaseRendering
		p.TotalRows = table.RowCount()
	})

	chunkSize := s.cfg.ChunkSize
	if ex.req.ChunkSize > 0 {
		chunkSize = ex.req.ChunkSize
	}
	workers := s.cfg.Workers
	if ex.req.Workers != 0 {
		workers = ex.req.Workers
	}
	if workers == 0 {
		workers = export.DefaultWorkers(s.cfg.ReservedThreads)
	}
	workers = min(workers, s.cfg.MaxWorkers)

	res, err := export.Export(ctx, table, export.Options{
		Path:            ex.path,
		ChunkSize:       chunkSize,
		ReservedThreads: s.cfg.ReservedThreads,
		Workers:         workers,
		Label:           ex.snapshot().Label,
		Partial:         s.cfg.Partial,
		Logger:          ex.logger,
		OnProgress: func(p export.Progress) {
			ex.update(func(ep *ExportProgress) {
				ep.RowsWritten = p.Completed
				ep.TotalRows = p.Total
			})
		},
	})
	if err != nil {
		s.finish(ex, failedResult(ex, started, res, err))
		return
	}

	s.finish(ex, &ExportResult{
		ExportID:     ex.id,
		TableKey:     ex.def.Info.Key,
		Label:        res.Label,
		Phase:        PhaseComplete,
		Path:         res.Path,
		FileName:     filepath.Base(res.Path),
		TotalRows:    res.TotalRows,
		RowsWritten:  res.RowsWritten,
		BytesWritten: res.BytesWritten,
		RenderErrors: res.RenderErrors,
		Units:        res.Units,
		Workers:      res.Workers,
		Duration:     time.Since(started),
		StartedAt:    started,
		FinishedAt:   time.Now(),
	})
}

// failedResult builds the result for a failed or cancelled export. res is
// nil when the pipeline never opened its destination.
func failedResult(ex *activeExport, started time.Time, res *export.Result, err error) *ExportResult {
	phase := PhaseFailed
	if errors.Is(err, export.ErrCancelled) || errors.Is(err, context.Canceled) {
		phase = PhaseCancelled
	}

	out := &ExportResult{
		ExportID:   ex.id,
		TableKey:   ex.def.Info.Key,
		Label:      ex.snapshot().Label,
		Phase:      phase,
		Path:       ex.path,
		FileName:   filepath.Base(ex.path),
		Duration:   time.Since(started),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Error:      err.Error(),
		ErrorCode:  MapError(err).Code,
	}
	if res != nil {
		out.TotalRows = res.TotalRows
		out.RowsWritten = res.RowsWritten
		out.BytesWritten = res.BytesWritten
		out.RenderErrors = res.RenderErrors
		out.Units = res.Units
		out.Workers = res.Workers
		out.PartialRemoved = res.PartialRemoved
	}
	return out
}

// finish publishes the result, notifies listeners and schedules cleanup.
func (s *Service) finish(ex *activeExport, res *ExportResult) {
	ex.mu.Lock()
	if ex.result != nil {
		ex.mu.Unlock()
		return
	}
	ex.result = res
	ex.progress.Phase = res.Phase
	ex.progress.RowsWritten = res.RowsWritten
	if res.TotalRows > 0 {
		ex.progress.TotalRows = res.TotalRows
	}
	ex.progress.Error = res.Error
	for _, ch := range ex.listeners {
		select {
		case ch <- ex.progress:
		default:
			// Drop the oldest update so the final state always arrives.
			select {
			case <-ch:
			default:
			}
			ch <- ex.progress
		}
		close(ch)
	}
	ex.listeners = nil
	ex.mu.Unlock()

	s.metrics.exportFinished(res)
	s.recordHistory(ex, res)

	ex.logger.Info("export finished",
		"phase", res.Phase,
		"rows", res.RowsWritten,
		"bytes", res.BytesWritten,
		"duration_ms", res.Duration.Milliseconds(),
	)

	close(ex.done)
	s.cleanup(ex.id, s.cfg.ResultRetention)
}

func (s *Service) recordHistory(ex *activeExport, res *ExportResult) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.history.Record(ctx, history.Entry{
		ID:           res.ExportID,
		TableKey:     res.TableKey,
		Label:        res.Label,
		Path:         res.Path,
		Status:       string(res.Phase),
		TotalRows:    res.TotalRows,
		RowsWritten:  res.RowsWritten,
		BytesWritten: res.BytesWritten,
		RenderErrors: res.RenderErrors,
		Workers:      res.Workers,
		Error:        res.Error,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
	})
	if err != nil {
		ex.logger.Warn("failed to record export history", "error", err)
	}
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the export finishes.
func (s *Service) SubscribeProgress(exportID string) (<-chan ExportProgress, error) {
	ex, err := s.lookup(exportID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ExportProgress, 10)

	ex.mu.Lock()
	defer ex.mu.Unlock()

	ch <- ex.progress
	if ex.result != nil {
		close(ch)
		return ch, nil
	}
	ex.listeners = append(ex.listeners, ch)
	return ch, nil
}

// CancelExport cancels a running export. Rows already contiguous with the
// written prefix are flushed before the file is closed.
func (s *Service) CancelExport(exportID string) error {
	ex, err := s.lookup(exportID)
	if err != nil {
		return err
	}
	ex.logger.Info("export cancel requested")
	ex.cancel()
	return nil
}

// GetExportResult returns the outcome of an export, blocking until it
// finishes or ctx is done.
func (s *Service) GetExportResult(ctx context.Context, exportID string) (*ExportResult, error) {
	ex, err := s.lookup(exportID)
	if err != nil {
		return nil, err
	}

	select {
	case <-ex.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.result, nil
}

// GetExportProgress returns the current progress without blocking.
func (s *Service) GetExportProgress(exportID string) (ExportProgress, error) {
	ex, err := s.lookup(exportID)
	if err != nil {
		return ExportProgress{}, err
	}
	return ex.snapshot(), nil
}

// DownloadPath returns the file of a completed export.
func (s *Service) DownloadPath(exportID string) (string, error) {
	ex, err := s.lookup(exportID)
	if err != nil {
		return "", err
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.result == nil || ex.result.Phase != PhaseComplete {
		return "", fmt.Errorf("%w: %s", ErrExportNotComplete, exportID)
	}
	return ex.result.Path, nil
}

func (s *Service) lookup(exportID string) (*activeExport, error) {
	s.mu.RLock()
	ex, ok := s.exports[exportID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, exportID)
	}
	return ex, nil
}

// cleanup removes the export from tracking after a delay.
func (s *Service) cleanup(exportID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.exports, exportID)
		s.mu.Unlock()
	})
}

func (ex *activeExport) snapshot() ExportProgress {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.progress
}

// update applies fn to the progress and notifies listeners.
func (ex *activeExport) update(fn func(*ExportProgress)) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.result != nil {
		return
	}
	fn(&ex.progress)
	ex.broadcastLocked()
}

func (ex *activeExport) broadcastLocked() {
	for _, ch := range ex.listeners {
		select {
		case ch <- ex.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}
