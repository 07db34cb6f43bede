package source

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/TableExport/internal/export"
)

// ErrRowOutOfRange is returned by CellText for a row outside the table.
var ErrRowOutOfRange = errors.New("row out of range")

// MemoryTable is an immutable table held in memory. Short rows read as empty
// cells.
type MemoryTable struct {
	columns []string
	rows    [][]string
}

var _ export.Table = (*MemoryTable)(nil)

// NewMemoryTable wraps columns and rows. The slices must not be modified
// afterwards.
func NewMemoryTable(columns []string, rows [][]string) *MemoryTable {
	return &MemoryTable{columns: columns, rows: rows}
}

func (m *MemoryTable) RowCount() int64           { return int64(len(m.rows)) }
func (m *MemoryTable) ColumnCount() int          { return len(m.columns) }
func (m *MemoryTable) ColumnName(col int) string { return m.columns[col] }

// Columns returns the column names.
func (m *MemoryTable) Columns() []string { return m.columns }

func (m *MemoryTable) CellText(row int64, col int) (string, error) {
	if row < 0 || row >= int64(len(m.rows)) {
		return "", fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	r := m.rows[row]
	if col >= len(r) {
		return "", nil
	}
	return r[col], nil
}
