// Package tables registers exportable tables with the core registry.
//
// Tables come from two places: CSV files found in a directory and tables
// in a Postgres database. Both are snapshotted into memory when an export
// starts, so the file reflects the data at that moment.
package tables

import (
	"fmt"

	"github.com/JonMunkholm/TableExport/internal/core"
)

const (
	GroupCSV      = "CSV"
	GroupPostgres = "Postgres"
)

// register adds def unless its key is taken.
func register(def core.TableDefinition) error {
	if _, exists := core.Get(def.Info.Key); exists {
		return fmt.Errorf("table %q already registered", def.Info.Key)
	}
	core.Register(def)
	return nil
}
