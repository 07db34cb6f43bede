package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyCSV is returned when a CSV input has no header record.
var ErrEmptyCSV = errors.New("csv has no header row")

// ReadCSV parses r into a MemoryTable. The first record holds the column
// names. Records may have differing lengths.
func ReadCSV(r io.Reader) (*MemoryTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}

	return NewMemoryTable(header, rows), nil
}

// LoadCSV reads the CSV file at path into memory.
func LoadCSV(path string) (*MemoryTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	counter := WrapReader(f, size)
	table, err := ReadCSV(counter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	slog.Debug("csv loaded",
		"path", path,
		"bytes", counter.Count(),
		"rows", table.RowCount(),
		"columns", table.ColumnCount(),
	)
	return table, nil
}

// TableKey derives a registry key from a CSV file name:
// "Monthly Sales.csv" becomes "monthly_sales".
func TableKey(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "_")
}
