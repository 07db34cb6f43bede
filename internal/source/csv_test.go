package source

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadCSV(t *testing.T) {
	input := "Name,Size\nplayer.png,2048\n\"a, b\",1\nshort\n"
	tbl, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if diff := cmp.Diff([]string{"Name", "Size"}, tbl.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if tbl.RowCount() != 3 {
		t.Fatalf("RowCount() = %d, want 3", tbl.RowCount())
	}

	tests := []struct {
		row  int64
		col  int
		want string
	}{
		{0, 0, "player.png"},
		{0, 1, "2048"},
		{1, 0, "a, b"},
		{2, 0, "short"},
		{2, 1, ""},
	}
	for _, tt := range tests {
		got, err := tbl.CellText(tt.row, tt.col)
		if err != nil {
			t.Errorf("CellText(%d, %d) error = %v", tt.row, tt.col, err)
		}
		if got != tt.want {
			t.Errorf("CellText(%d, %d) = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}

	if _, err := tbl.CellText(3, 0); !errors.Is(err, ErrRowOutOfRange) {
		t.Errorf("CellText past end error = %v, want ErrRowOutOfRange", err)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); !errors.Is(err, ErrEmptyCSV) {
		t.Errorf("ReadCSV(\"\") error = %v, want ErrEmptyCSV", err)
	}
}

func TestLoadCSV_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Monthly Sales.csv")
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,total\n1,10\n2,20\n")...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if got := tbl.ColumnName(0); got != "id" {
		t.Errorf("ColumnName(0) = %q, want %q", got, "id")
	}
	if tbl.RowCount() != 2 {
		t.Errorf("RowCount() = %d, want 2", tbl.RowCount())
	}
}

func TestLoadCSV_Missing(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadCSV() error = %v, want os.ErrNotExist", err)
	}
}

func TestTableKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"Monthly Sales.csv", "monthly_sales"},
		{"/data/snapshots/objects-2024.csv", "objects_2024"},
		{"diff.CSV", "diff"},
		{"  spaced  name .csv", "spaced_name"},
	}
	for _, tt := range tests {
		if got := TableKey(tt.path); got != tt.want {
			t.Errorf("TableKey(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
