package export

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// gridTable is an in-memory Table used across the package tests.
type gridTable struct {
	columns []string
	rows    int64
	cell    func(row int64, col int) (string, error)
}

func (g *gridTable) RowCount() int64           { return g.rows }
func (g *gridTable) ColumnCount() int          { return len(g.columns) }
func (g *gridTable) ColumnName(col int) string { return g.columns[col] }
func (g *gridTable) CellText(row int64, col int) (string, error) {
	return g.cell(row, col)
}

// newGrid returns a table whose cells exercise the quoting rules.
func newGrid(rows int64) *gridTable {
	return &gridTable{
		columns: []string{"id", "name", "note"},
		rows:    rows,
		cell: func(row int64, col int) (string, error) {
			switch col {
			case 0:
				return fmt.Sprintf("%d", row), nil
			case 1:
				if row%7 == 0 {
					return fmt.Sprintf("last, first %d", row), nil
				}
				return fmt.Sprintf("name-%d", row), nil
			default:
				if row%11 == 0 {
					return `said "hi"`, nil
				}
				if row%13 == 0 {
					return "two\nlines", nil
				}
				return "", nil
			}
		},
	}
}

// sequentialCSV renders t on a single goroutine without the pipeline.
func sequentialCSV(t Table) string {
	var b strings.Builder
	b.WriteString(Header(t))
	for row := int64(0); row < t.RowCount(); row++ {
		for col := 0; col < t.ColumnCount(); col++ {
			if col > 0 {
				b.WriteByte(',')
			}
			text, err := t.CellText(row, col)
			if err != nil {
				text = ErrorPlaceholder
			}
			b.WriteString(EscapeField(text))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// memSink collects output in memory and optionally fails after limit bytes.
type memSink struct {
	mu     sync.Mutex
	buf    strings.Builder
	limit  int
	closed bool
}

var errDiskFull = errors.New("disk full")

func (s *memSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && s.buf.Len()+len(p) > s.limit {
		return 0, errDiskFull
	}
	return s.buf.Write(p)
}

func (s *memSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}


func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
