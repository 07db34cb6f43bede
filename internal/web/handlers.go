package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/TableExport/internal/core"
	"github.com/JonMunkholm/TableExport/internal/history"
	"github.com/JonMunkholm/TableExport/internal/logging"
	"github.com/JonMunkholm/TableExport/internal/web/templates"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// handleDashboard renders the main page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.History(r.Context(), "", 20)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to load history", "error", err)
	}

	params := templates.DashboardParams{
		Groups:  s.service.ListTablesByGroup(),
		Exports: s.service.ListExports(),
		History: entries,
		Queue:   s.service.ExportLimiterStatus(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	templates.Dashboard(params).Render(r.Context(), w)
}

// handleListTables returns all registered tables as JSON.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListTables())
}

// startExportRequest is the optional JSON body of POST /api/export/{tableKey}.
type startExportRequest struct {
	Label     string `json:"label"`
	ChunkSize int    `json:"chunk_size"`
	Workers   int    `json:"workers"`
}

// StartExportResponse is returned when an export is accepted.
type StartExportResponse struct {
	ExportID    string `json:"export_id"`
	ProgressURL string `json:"progress_url"`
	ResultURL   string `json:"result_url"`
}

// handleStartExport queues an export of one table.
func (s *Server) handleStartExport(w http.ResponseWriter, r *http.Request) {
	tableKey := chi.URLParam(r, "tableKey")

	var body startExportRequest
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") && r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			s.respondError(w, r, fmt.Errorf("invalid export request: %w", err), http.StatusBadRequest)
			return
		}
	}
	if body.ChunkSize < 0 {
		s.respondError(w, r, fmt.Errorf("%w: chunk_size must not be negative", core.ErrInvalidRequest), http.StatusBadRequest)
		return
	}
	if limit := s.service.MaxWorkers(); body.Workers > limit {
		s.respondError(w, r, fmt.Errorf("%w: workers must be at most %d", core.ErrInvalidRequest, limit), http.StatusBadRequest)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	exportID, err := s.service.StartExport(ctx, core.ExportRequest{
		TableKey:  tableKey,
		Label:     body.Label,
		ChunkSize: body.ChunkSize,
		Workers:   body.Workers,
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	// Plain form posts come from the dashboard
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusAccepted, StartExportResponse{
		ExportID:    exportID,
		ProgressURL: "/api/export/" + exportID + "/progress",
		ResultURL:   "/api/export/" + exportID + "/result",
	})
}

// handleExportProgress streams export progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	exportID := chi.URLParam(r, "exportID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	if h := r.Header.Get("Last-Event-ID"); h != "" {
		lastEventIDStr = h
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if n, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = n
		}
	}

	progressCh, err := s.service.SubscribeProgress(exportID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - export finished
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			eventID := int(progress.Percent())
			if eventID <= lastEventID && !progress.Phase.Finished() {
				continue
			}
			lastEventID = eventID

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleExportResult returns the outcome of an export. Unfinished exports
// return 202 with their progress unless wait=true is given.
func (s *Server) handleExportResult(w http.ResponseWriter, r *http.Request) {
	exportID := chi.URLParam(r, "exportID")

	if r.URL.Query().Get("wait") != "true" {
		progress, err := s.service.GetExportProgress(exportID)
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		if !progress.Phase.Finished() {
			writeJSON(w, http.StatusAccepted, progress)
			return
		}
	}

	result, err := s.service.GetExportResult(r.Context(), exportID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(result))
}

// handleCancelExport cancels an in-progress export.
func (s *Server) handleCancelExport(w http.ResponseWriter, r *http.Request) {
	exportID := chi.URLParam(r, "exportID")

	if err := s.service.CancelExport(exportID); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleDownload serves the file of a completed export.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	exportID := chi.URLParam(r, "exportID")

	path, err := s.service.DownloadPath(exportID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// handleListExports returns exports still tracked in memory.
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListExports())
}

// handleHistory returns persisted exports, optionally filtered by table.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", defaultHistoryLimit), maxHistoryLimit)

	entries, err := s.service.History(r.Context(), r.URL.Query().Get("table"), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// handleQueueStatus returns the current state of the export limiter.
// Used for monitoring and to check if the system can accept more exports.
func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ExportLimiterStatus())
}

// ExportResultResponse is the JSON form of a finished export.
type ExportResultResponse struct {
	ExportID       string `json:"export_id"`
	TableKey       string `json:"table_key"`
	Label          string `json:"label"`
	Status         string `json:"status"`
	FileName       string `json:"file_name"`
	DownloadURL    string `json:"download_url,omitempty"`
	TotalRows      int64  `json:"total_rows"`
	RowsWritten    int64  `json:"rows_written"`
	BytesWritten   int64  `json:"bytes_written"`
	RenderErrors   int64  `json:"render_errors"`
	Workers        int    `json:"workers"`
	PartialRemoved bool   `json:"partial_removed,omitempty"`
	Duration       string `json:"duration"`
	Error          string `json:"error,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
}

// toResponse converts an ExportResult to a JSON-friendly format. The
// server-side path is not exposed.
func toResponse(result *core.ExportResult) ExportResultResponse {
	resp := ExportResultResponse{
		ExportID:       result.ExportID,
		TableKey:       result.TableKey,
		Label:          result.Label,
		Status:         string(result.Phase),
		FileName:       result.FileName,
		TotalRows:      result.TotalRows,
		RowsWritten:    result.RowsWritten,
		BytesWritten:   result.BytesWritten,
		RenderErrors:   result.RenderErrors,
		Workers:        result.Workers,
		PartialRemoved: result.PartialRemoved,
		Duration:       result.Duration.String(),
		Error:          result.Error,
		ErrorCode:      result.ErrorCode,
	}
	if result.Phase == core.PhaseComplete {
		resp.DownloadURL = "/api/export/" + result.ExportID + "/download"
	}
	return resp
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil || val < 1 {
		return defaultVal
	}
	return val
}

