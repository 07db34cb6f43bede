package export

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		chunkSize int
		wantUnits int
	}{
		{"empty", 0, 100, 0},
		{"single row", 1, 100, 1},
		{"exact chunk", 100, 100, 1},
		{"one over", 101, 100, 2},
		{"250 rows", 250, 100, 3},
		{"chunk of one", 5, 1, 5},
		{"uneven", 7, 3, 3},
		{"default chunk", 250, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := Partition(tt.total, tt.chunkSize, "h\n")
			if len(units) != tt.wantUnits {
				t.Fatalf("Partition(%d, %d) = %d units, want %d", tt.total, tt.chunkSize, len(units), tt.wantUnits)
			}

			var next int64
			for i, u := range units {
				if u.StartRow != next {
					t.Errorf("unit %d StartRow = %d, want %d", i, u.StartRow, next)
				}
				if u.Rows() <= 0 {
					t.Errorf("unit %d is empty", i)
				}
				if i < len(units)-1 && tt.chunkSize > 0 && u.Rows() != int64(tt.chunkSize) {
					t.Errorf("unit %d has %d rows, want %d", i, u.Rows(), tt.chunkSize)
				}
				wantHeader := ""
				if i == 0 {
					wantHeader = "h\n"
				}
				if u.Header != wantHeader {
					t.Errorf("unit %d Header = %q, want %q", i, u.Header, wantHeader)
				}
				next = u.EndRow
			}
			if next != tt.total {
				t.Errorf("units end at %d, want %d", next, tt.total)
			}
		})
	}
}

func TestPartition_TilesEveryRange(t *testing.T) {
	for total := int64(0); total <= 60; total++ {
		for chunk := 1; chunk <= 13; chunk++ {
			covered := make([]int, total)
			for _, u := range Partition(total, chunk, "") {
				for r := u.StartRow; r < u.EndRow; r++ {
					covered[r]++
				}
			}
			for r, n := range covered {
				if n != 1 {
					t.Fatalf("total=%d chunk=%d: row %d covered %d times", total, chunk, r, n)
				}
			}
		}
	}
}

func TestWorkQueue_FIFO(t *testing.T) {
	var q WorkQueue
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop on empty queue returned a unit")
	}

	q.Push(Partition(30, 10, "")...)
	if got := q.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}

	var starts []int64
	for {
		u, ok := q.TryPop()
		if !ok {
			break
		}
		starts = append(starts, u.StartRow)
	}
	if diff := cmp.Diff([]int64{0, 10, 20}, starts); diff != "" {
		t.Errorf("pop order mismatch (-want +got):\n%s", diff)
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len() after drain = %d, want 0", got)
	}
}

func TestReorderBuffer_PeekIfNext(t *testing.T) {
	b := NewReorderBuffer()
	units := Partition(300, 100, "")

	b.Insert(units[2])
	b.Insert(units[0])

	select {
	case <-b.Ready():
	default:
		t.Fatal("Insert did not signal Ready")
	}

	if _, ok := b.PeekIfNext(100); ok {
		t.Error("PeekIfNext(100) returned a unit while head is 0")
	}
	if got := b.Len(); got != 2 {
		t.Errorf("Len() after failed peek = %d, want 2", got)
	}

	u, ok := b.PeekIfNext(0)
	if !ok || u.StartRow != 0 {
		t.Fatalf("PeekIfNext(0) = %v, %v; want unit 0", u, ok)
	}
	if _, ok := b.PeekIfNext(100); ok {
		t.Error("PeekIfNext(100) returned a unit before it was inserted")
	}

	b.Insert(units[1])
	for _, want := range []int64{100, 200} {
		u, ok := b.PeekIfNext(want)
		if !ok || u.StartRow != want {
			t.Fatalf("PeekIfNext(%d) = %v, %v", want, u, ok)
		}
	}
	if got := b.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}
