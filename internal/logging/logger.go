// Package logging provides structured logging configuration using log/slog.
//
// Loggers taken from a request context carry chi's request ID, and loggers
// taken from an export context carry the export ID and table key, so one
// export can be followed from the HTTP request through every pipeline stage.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
func Setup(level, format string) {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(New(os.Stdout, lvl, format))
}

// New builds a logger writing to w. The CLI uses it to log to stderr while
// the exported CSV or summary goes to stdout.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel converts "debug", "info", "warn"/"warning" or "error" to a
// slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

type exportKey struct{}

type exportFields struct {
	id       string
	tableKey string
}

// ContextWithExport tags ctx with an export so FromContext adds export_id
// and table to every entry.
func ContextWithExport(ctx context.Context, exportID, tableKey string) context.Context {
	return context.WithValue(ctx, exportKey{}, exportFields{id: exportID, tableKey: tableKey})
}

// FromContext returns a logger enriched with request context.
//
// A chi RequestID in ctx adds request_id; an export tagged with
// ContextWithExport adds export_id and table.
//
// Usage:
//
//	func handleRequest(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("processing request", "table", tableKey)
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	// Chi's RequestID middleware stores the ID in context
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if f, ok := ctx.Value(exportKey{}).(exportFields); ok {
		logger = logger.With("export_id", f.id, "table", f.tableKey)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
// This is useful for creating operation-specific loggers that carry
// consistent context through a multi-step process.
//
// Usage:
//
//	logger := logging.WithFields(ctx, "client_ip", ip)
//	logger.Info("export queued")
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
