// Package templates holds the HTML components rendered by the web server.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const styles = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2937}
table{border-collapse:collapse;width:100%;margin-bottom:2rem}
th,td{text-align:left;padding:.4rem .6rem;border-bottom:1px solid #e5e7eb}
th{background:#f9fafb}
.alert{padding:.75rem 1rem;border:1px solid #fca5a5;background:#fef2f2;border-radius:.25rem}
.muted{color:#6b7280}
.status-complete{color:#047857}.status-failed{color:#b91c1c}.status-cancelled{color:#92400e}`

// Page wraps body in the shared document shell.
func Page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w,
			"<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>%s</title><style>%s</style></head><body>",
			templ.EscapeString(title), styles); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert" role="alert"><strong>%s</strong> <span class="muted">(Code: %s)</span><p>%s</p></div>`,
			templ.EscapeString(message), templ.EscapeString(code), templ.EscapeString(action))
		return err
	})
}
