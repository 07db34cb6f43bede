package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNoColumns is returned when a query yields no columns.
var ErrNoColumns = errors.New("query returned no columns")

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres snapshots every row of table into memory, ordered by the
// first column so repeated exports produce the same file.
func LoadPostgres(ctx context.Context, db Querier, table string) (*MemoryTable, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY 1 ASC", QuoteIdentifier(table))
	return LoadQuery(ctx, db, query)
}

// LoadQuery snapshots the result of an arbitrary query into memory. Values
// are rendered with FormatValue.
func LoadQuery(ctx context.Context, db Querier, query string, args ...any) (*MemoryTable, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	if len(fields) == 0 {
		return nil, ErrNoColumns
	}
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var data [][]string
	for rows.Next() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rec := make([]string, len(values))
		for i, v := range values {
			rec[i] = FormatValue(v)
		}
		data = append(data, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return NewMemoryTable(columns, data), nil
}

// QuoteIdentifier quotes a possibly schema-qualified SQL identifier.
// "public.orders" becomes "public"."orders".
func QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
