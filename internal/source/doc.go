// Package source provides export.Table implementations: an immutable
// in-memory table, a CSV loader and a Postgres snapshot loader, plus
// per-column display formatters.
//
// Every table produced here is a snapshot. Rows never move while an export
// is running, and CellText is safe to call from many goroutines at once.
package source
