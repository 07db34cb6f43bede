// Package export serializes a table into a single ordered CSV stream using
// several render workers.
//
// The table is split into fixed-size row ranges ([WorkUnit]) that are queued
// up front. Workers pop units without blocking, render them into text and
// hand them to a [ReorderBuffer]. A single writer goroutine owns the output
// file and appends units strictly in row order, so the bytes on disk do not
// depend on how many workers ran or in what order they finished.
//
//	p, err := export.New(table, export.Options{
//	    Path:  "out/orders.csv",
//	    Label: "Exporting orders...",
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := p.Run(ctx)
//
// The goroutine calling [Pipeline.Run] renders units too, so a run with no
// dedicated workers still completes. Dedicated workers are never started
// beyond the number of units.
//
// # Field encoding
//
// Rows are comma-delimited and end with "\n". Any double quote in a cell is
// replaced by a single quote, and a cell containing a comma, newline or double
// quote is wrapped in double quotes. This is intentionally not RFC 4180.
//
// # Errors
//
//   - [ErrInvalidConfig]: rejected by [New] before anything is opened.
//   - [*IOError]: opening, writing or closing the destination failed. The run
//     stops and the partial file is handled per [Options.Partial].
//   - [ErrCancelled]: the context was cancelled. Units already contiguous with
//     the written prefix are flushed first.
//
// A cell that fails to render is written as [ErrorPlaceholder] and counted in
// [Result.RenderErrors]; it never aborts the run.
package export
