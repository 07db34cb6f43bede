package export

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestEscapeField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"a,b", `"a,b"`},
		{`he said "hi"`, `"he said 'hi'"`},
		{"line1\nline2", "\"line1\nline2\""},
		{"it's", "it's"},
		{`"`, `"'"`},
		{"tab\tseparated", "tab\tseparated"},
	}

	for _, tt := range tests {
		if got := EscapeField(tt.in); got != tt.want {
			t.Errorf("EscapeField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeader(t *testing.T) {
	tbl := &gridTable{columns: []string{"Name", "Size, bytes", "Path"}}
	if got, want := Header(tbl), "Name,\"Size, bytes\",Path\n"; got != want {
		t.Errorf("Header() = %q, want %q", got, want)
	}

	empty := &gridTable{}
	if got := Header(empty); got != "" {
		t.Errorf("Header() with no columns = %q, want empty", got)
	}
}

func TestRenderUnit_PlaceholderOnFailure(t *testing.T) {
	errBoom := errors.New("boom")
	tbl := &gridTable{
		columns: []string{"a", "b"},
		rows:    3,
		cell: func(row int64, col int) (string, error) {
			switch {
			case row == 1 && col == 1:
				return "", errBoom
			case row == 2 && col == 0:
				panic("formatter not safe here")
			}
			return "ok", nil
		},
	}

	u := &WorkUnit{StartRow: 0, EndRow: 3}
	err := renderUnit(tbl, u)

	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("renderUnit error = %v, want *RenderError", err)
	}
	if re.Row != 1 || re.Col != 1 || !errors.Is(err, errBoom) {
		t.Errorf("first failure = %+v, want row 1 col 1 wrapping errBoom", re)
	}
	if u.renderErrors != 2 {
		t.Errorf("renderErrors = %d, want 2", u.renderErrors)
	}

	want := "ok,ok\nok,#ERR\n#ERR,ok\n"
	if got := string(u.Text()); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestWorker_ExitsWhenQueueEmpty(t *testing.T) {
	tbl := newGrid(45)
	q := &WorkQueue{}
	q.Push(Partition(45, 10, "")...)
	b := NewReorderBuffer()

	var errs atomic.Int64
	w := &worker{table: tbl, queue: q, buffer: b, renderErrors: &errs, logger: discardLogger()}
	if err := w.run(testContext(t)); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if got := b.Len(); got != 5 {
		t.Errorf("buffered units = %d, want 5", got)
	}
	var got strings.Builder
	for next := int64(0); ; {
		u, ok := b.PeekIfNext(next)
		if !ok {
			break
		}
		got.Write(u.Text())
		next = u.EndRow
	}
	want := strings.TrimPrefix(sequentialCSV(tbl), Header(tbl))
	if got.String() != want {
		t.Errorf("rendered text mismatch:\ngot  %q\nwant %q", got.String(), want)
	}
}
