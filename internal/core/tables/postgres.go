package tables

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/TableExport/internal/core"
	"github.com/JonMunkholm/TableExport/internal/export"
	"github.com/JonMunkholm/TableExport/internal/source"
)

// RegisterPostgres registers each named table. Names may be schema
// qualified ("billing.invoices"); the key joins the parts with "_".
func RegisterPostgres(db source.Querier, names []string) ([]string, error) {
	var (
		keys []string
		errs []error
	)
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		key := PostgresKey(name)
		err := register(core.TableDefinition{
			Info: core.TableInfo{
				Key:    key,
				Group:  GroupPostgres,
				Label:  name,
				Source: "postgres:" + name,
			},
			Open: func(ctx context.Context) (export.Table, error) {
				return source.LoadPostgres(ctx, db, name)
			},
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keys = append(keys, key)
	}
	if len(errs) > 0 {
		return keys, fmt.Errorf("register postgres tables: %w", errors.Join(errs...))
	}
	return keys, nil
}

// PostgresKey derives a registry key from a table name.
func PostgresKey(name string) string {
	return "pg_" + strings.ReplaceAll(strings.ToLower(name), ".", "_")
}
