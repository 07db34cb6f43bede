package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

// ErrorPlaceholder is written in place of a cell that failed to render.
const ErrorPlaceholder = "#ERR"

// Table is the data source being exported. Row indices must stay stable for
// the duration of a run, and CellText must be safe to call concurrently for
// distinct rows.
type Table interface {
	RowCount() int64
	ColumnCount() int
	ColumnName(col int) string
	CellText(row int64, col int) (string, error)
}

// EscapeField encodes a single cell. Double quotes become single quotes, and
// the result is quoted when the input contains a comma, newline or double
// quote.
func EscapeField(s string) string {
	if !strings.ContainsAny(s, ",\n\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, "'") + `"`
}

// Header returns the header line for t: escaped column names joined by commas
// and terminated by a newline. A table without columns has an empty header.
func Header(t Table) string {
	n := t.ColumnCount()
	if n == 0 {
		return ""
	}
	var b strings.Builder
	for col := 0; col < n; col++ {
		if col > 0 {
			b.WriteByte(',')
		}
		b.WriteString(EscapeField(t.ColumnName(col)))
	}
	b.WriteByte('\n')
	return b.String()
}

// renderUnit formats every row of u into u.text. It returns the first cell
// failure, if any; failing cells are written as ErrorPlaceholder.
func renderUnit(t Table, u *WorkUnit) error {
	cols := t.ColumnCount()
	var (
		buf   bytes.Buffer
		first error
	)
	buf.Grow(int(u.Rows()) * (cols*8 + 1))

	for row := u.StartRow; row < u.EndRow; row++ {
		for col := 0; col < cols; col++ {
			if col > 0 {
				buf.WriteByte(',')
			}
			text, err := cellText(t, row, col)
			if err != nil {
				u.renderErrors++
				if first == nil {
					first = &RenderError{Row: row, Col: col, Err: err}
				}
				text = ErrorPlaceholder
			}
			buf.WriteString(EscapeField(text))
		}
		buf.WriteByte('\n')
	}

	u.text = buf.Bytes()
	return first
}

func cellText(t Table, row int64, col int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.CellText(row, col)
}

// worker renders queued units until the queue is empty or the run stops.
// Dedicated goroutines and the goroutine driving the run use the same loop.
type worker struct {
	id           int
	table        Table
	queue        *WorkQueue
	buffer       *ReorderBuffer
	renderErrors *atomic.Int64
	logger       *slog.Logger
}

func (w *worker) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		u, ok := w.queue.TryPop()
		if !ok {
			return nil
		}

		if err := renderUnit(w.table, u); err != nil {
			w.renderErrors.Add(int64(u.renderErrors))
			w.logger.Warn("cells failed to render",
				"worker", w.id,
				"start_row", u.StartRow,
				"end_row", u.EndRow,
				"failed_cells", u.renderErrors,
				"error", err,
			)
		}

		// A unit finished after cancellation was not ready when the run
		// stopped; drop it.
		if ctx.Err() != nil {
			return nil
		}
		w.buffer.Insert(u)
	}
}
