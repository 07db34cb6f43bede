// Package core provides the export service behind the web server and CLI.
//
// It sits on top of the export pipeline and adds everything a long-running
// server needs: a table registry, asynchronous jobs with progress fan-out,
// concurrency limits, user-facing error codes, Prometheus metrics and a
// persisted export history.
//
// # Table Registry
//
// Tables are registered at start-up using [Register]. Each [TableDefinition]
// carries its metadata and a function that loads the table on demand:
//
//	core.Register(core.TableDefinition{
//	    Info: core.TableInfo{Key: "snapshots", Group: "CSV", Label: "Snapshots"},
//	    Open: func(ctx context.Context) (export.Table, error) {
//	        return source.LoadCSV("data/snapshots.csv")
//	    },
//	})
//
// # Export Jobs
//
// The flow of a single export is:
//
//  1. Client calls [Service.StartExport], which waits for a limiter slot
//  2. The table is loaded, then rendered and written by the pipeline
//  3. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//  4. The result is kept in memory for ResultRetention and recorded in history
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CFG001: Invalid export settings
//   - EXP001-EXP005: Export lifecycle (cancelled, not found, timeout)
//   - IO001-IO003: Output file errors
//   - SRC001-SRC003: Table source errors
//   - TBL001-TBL002: Unknown or invalid tables
package core
