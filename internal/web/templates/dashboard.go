package templates

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/TableExport/internal/core"
	"github.com/JonMunkholm/TableExport/internal/history"
)

// DashboardParams is everything the dashboard page shows.
type DashboardParams struct {
	Groups  map[string][]core.TableInfo
	Exports []core.ExportProgress
	History []history.Entry
	Queue   core.ExportLimiterStatus
}

// Dashboard renders the landing page.
func Dashboard(p DashboardParams) templ.Component {
	return Page("Table Export", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>Table Export</h1>")
		fmt.Fprintf(&b, `<p class="muted">%d of %d export slots free, %d queued</p>`,
			p.Queue.Available, p.Queue.MaxConcurrent, p.Queue.Queued)

		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := TableList(p.Groups).Render(ctx, w); err != nil {
			return err
		}
		if err := ExportList(p.Exports).Render(ctx, w); err != nil {
			return err
		}
		return HistoryTable(p.History).Render(ctx, w)
	}))
}

// TableList renders registered tables grouped by source.
func TableList(groups map[string][]core.TableInfo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h2>Tables</h2>")
		if len(groups) == 0 {
			b.WriteString(`<p class="muted">No tables registered.</p>`)
		}
		for _, group := range sortedKeys(groups) {
			fmt.Fprintf(&b, "<h3>%s</h3><table><tr><th>Key</th><th>Label</th><th>Source</th><th></th></tr>",
				templ.EscapeString(group))
			for _, t := range groups[group] {
				fmt.Fprintf(&b,
					`<tr><td>%s</td><td>%s</td><td class="muted">%s</td><td><form method="post" action="/api/export/%s"><button type="submit">Export</button></form></td></tr>`,
					templ.EscapeString(t.Key), templ.EscapeString(t.Label),
					templ.EscapeString(t.Source), templ.EscapeString(t.Key))
			}
			b.WriteString("</table>")
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ExportList renders exports still held in memory.
func ExportList(exports []core.ExportProgress) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h2>Recent exports</h2>")
		if len(exports) == 0 {
			b.WriteString(`<p class="muted">No exports yet.</p>`)
		} else {
			b.WriteString("<table><tr><th>Label</th><th>Table</th><th>Status</th><th>Rows</th><th></th></tr>")
			for _, e := range exports {
				link := ""
				if e.Phase == core.PhaseComplete {
					link = fmt.Sprintf(`<a href="/api/export/%s/download">Download</a>`, templ.EscapeString(e.ExportID))
				}
				fmt.Fprintf(&b,
					`<tr><td>%s</td><td>%s</td><td class="status-%s">%s</td><td>%d / %d (%d%%)</td><td>%s</td></tr>`,
					templ.EscapeString(e.Label), templ.EscapeString(e.TableKey),
					templ.EscapeString(string(e.Phase)), templ.EscapeString(string(e.Phase)),
					e.RowsWritten, e.TotalRows, int(e.Percent()), link)
			}
			b.WriteString("</table>")
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// HistoryTable renders persisted exports.
func HistoryTable(entries []history.Entry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h2>History</h2>")
		if len(entries) == 0 {
			b.WriteString(`<p class="muted">No history recorded.</p>`)
		} else {
			b.WriteString("<table><tr><th>Finished</th><th>Table</th><th>Status</th><th>Rows</th><th>Duration</th><th>Error</th></tr>")
			for _, e := range entries {
				fmt.Fprintf(&b,
					`<tr><td>%s</td><td>%s</td><td class="status-%s">%s</td><td>%d</td><td>%s</td><td class="muted">%s</td></tr>`,
					e.FinishedAt.Format(time.DateTime), templ.EscapeString(e.TableKey),
					templ.EscapeString(e.Status), templ.EscapeString(e.Status),
					e.RowsWritten, e.Duration().Round(time.Millisecond), templ.EscapeString(e.Error))
			}
			b.WriteString("</table>")
		}
		_, err := io.WriteString(w, b.String())
		return err
	})
}

func sortedKeys(m map[string][]core.TableInfo) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
