package source

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeRows is a minimal pgx.Rows over canned values.
type fakeRows struct {
	fields []pgconn.FieldDescription
	values [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Scan(...any) error                            { return errors.New("not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.values[r.pos-1], nil }

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.query = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestLoadPostgres(t *testing.T) {
	rows := &fakeRows{
		fields: []pgconn.FieldDescription{{Name: "id"}, {Name: "name"}, {Name: "active"}},
		values: [][]any{
			{int64(1), pgtype.Text{String: "alpha", Valid: true}, true},
			{int64(2), pgtype.Text{}, pgtype.Bool{Bool: false, Valid: true}},
		},
	}
	q := &fakeQuerier{rows: rows}

	tbl, err := LoadPostgres(context.Background(), q, "public.orders")
	if err != nil {
		t.Fatalf("LoadPostgres() error = %v", err)
	}
	if !strings.Contains(q.query, `FROM "public"."orders"`) {
		t.Errorf("query = %q, want quoted schema-qualified table", q.query)
	}
	if !rows.closed {
		t.Error("rows were not closed")
	}

	if diff := cmp.Diff([]string{"id", "name", "active"}, tbl.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	want := [][]string{{"1", "alpha", "Yes"}, {"2", "", "No"}}
	for row, cells := range want {
		for col, w := range cells {
			got, _ := tbl.CellText(int64(row), col)
			if got != w {
				t.Errorf("cell (%d,%d) = %q, want %q", row, col, got, w)
			}
		}
	}
}

func TestLoadPostgres_Errors(t *testing.T) {
	errConn := errors.New("connection refused")
	if _, err := LoadPostgres(context.Background(), &fakeQuerier{err: errConn}, "t"); !errors.Is(err, errConn) {
		t.Errorf("query failure = %v, want wrapped errConn", err)
	}

	errRead := errors.New("read failed")
	q := &fakeQuerier{rows: &fakeRows{fields: []pgconn.FieldDescription{{Name: "a"}}, err: errRead}}
	if _, err := LoadPostgres(context.Background(), q, "t"); !errors.Is(err, errRead) {
		t.Errorf("iteration failure = %v, want wrapped errRead", err)
	}

	q = &fakeQuerier{rows: &fakeRows{}}
	if _, err := LoadPostgres(context.Background(), q, "t"); !errors.Is(err, ErrNoColumns) {
		t.Errorf("no columns = %v, want ErrNoColumns", err)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"orders", `"orders"`},
		{"public.orders", `"public"."orders"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
