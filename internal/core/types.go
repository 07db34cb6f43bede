package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/TableExport/internal/export"
)

// TableInfo describes an exportable table for listings and the dashboard.
type TableInfo struct {
	Key         string   `json:"key"`
	Group       string   `json:"group"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Source      string   `json:"source"`
	Columns     []string `json:"columns,omitempty"`
}

// OpenFunc produces a snapshot of a table for one export. It is called once
// per export, after an export slot has been acquired.
type OpenFunc func(ctx context.Context) (export.Table, error)

// TableDefinition is everything needed to export one registered table.
type TableDefinition struct {
	Info TableInfo
	Open OpenFunc
}

// ExportPhase is the lifecycle stage of an export job.
type ExportPhase string

const (
	PhaseQueued    ExportPhase = "queued"
	PhaseLoading   ExportPhase = "loading"
	PhaseRendering ExportPhase = "rendering"
	PhaseComplete  ExportPhase = "complete"
	PhaseFailed    ExportPhase = "failed"
	PhaseCancelled ExportPhase = "cancelled"
)

// Finished reports whether the phase is terminal.
func (p ExportPhase) Finished() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// ExportRequest asks the service to export one registered table.
type ExportRequest struct {
	TableKey string `json:"table_key"`

	// Label overrides the default "Exporting <table>..." progress label.
	Label string `json:"label,omitempty"`

	// ChunkSize and Workers override the service defaults when non-zero.
	ChunkSize int `json:"chunk_size,omitempty"`
	Workers   int `json:"workers,omitempty"`
}

// ExportProgress is broadcast to subscribers while an export runs.
type ExportProgress struct {
	ExportID    string      `json:"export_id"`
	TableKey    string      `json:"table_key"`
	Label       string      `json:"label"`
	Phase       ExportPhase `json:"phase"`
	RowsWritten int64       `json:"rows_written"`
	TotalRows   int64       `json:"total_rows"`
	StartedAt   time.Time   `json:"started_at"`
	Error       string      `json:"error,omitempty"`
}

// Percent returns completion as 0-100. Exports that have not counted their
// rows yet report 0.
func (p ExportProgress) Percent() float64 {
	if p.Phase == PhaseComplete {
		return 100
	}
	if p.TotalRows <= 0 {
		return 0
	}
	return float64(p.RowsWritten) / float64(p.TotalRows) * 100
}

// ExportResult is the final outcome of an export job.
type ExportResult struct {
	ExportID       string        `json:"export_id"`
	TableKey       string        `json:"table_key"`
	Label          string        `json:"label"`
	Phase          ExportPhase   `json:"phase"`
	Path           string        `json:"path"`
	FileName       string        `json:"file_name"`
	TotalRows      int64         `json:"total_rows"`
	RowsWritten    int64         `json:"rows_written"`
	BytesWritten   int64         `json:"bytes_written"`
	RenderErrors   int64         `json:"render_errors"`
	Units          int           `json:"units"`
	Workers        int           `json:"workers"`
	PartialRemoved bool          `json:"partial_removed"`
	Duration       time.Duration `json:"duration"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Error          string        `json:"error,omitempty"`
	ErrorCode      string        `json:"error_code,omitempty"`
}
