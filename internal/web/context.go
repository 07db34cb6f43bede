package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/TableExport/internal/core"
	"github.com/JonMunkholm/TableExport/internal/web/middleware"
)

// WithRequestMetadata adds IP and User-Agent to context for export logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, middleware.ClientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}
