package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JonMunkholm/TableExport/internal/export"
	"github.com/JonMunkholm/TableExport/internal/logging"
	"github.com/JonMunkholm/TableExport/internal/source"
)

type exportCommandParams struct {
	output          string
	chunkSize       int
	reservedThreads int
	workers         int
	label           string
	keepPartial     bool
	formats         string
	pgTable         string
	databaseURL     string
	quiet           bool
	logLevel        string
}

func newExportCommand() *cobra.Command {
	var params exportCommandParams

	cmd := &cobra.Command{
		Use:   "export [source.csv]",
		Short: "Export a CSV file or Postgres table",
		Long: `Export a table to CSV.

The source is either a CSV file given as the only argument, or a Postgres
table named with --pg-table. Rows are rendered in parallel and written in
their original order. Interrupting the command stops rendering, flushes the
rows that are already in order and removes the partial file unless
--keep-partial is set.`,
		Example: `  tabexport export snapshots.csv -o out.csv --format Size=size
  tabexport export --pg-table billing.invoices --database-url $DATABASE_URL -o invoices.csv`,
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case params.pgTable == "" && len(args) != 1:
				return errors.New("expected a source CSV file or --pg-table")
			case params.pgTable != "" && len(args) != 0:
				return errors.New("a source CSV file and --pg-table are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), params, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&params.output, "output", "o", "", "destination CSV file")
	flags.IntVar(&params.chunkSize, "chunk-size", export.DefaultChunkSize, "rows per work unit")
	flags.IntVar(&params.reservedThreads, "reserved-threads", export.DefaultReservedThreads, "CPUs left free when sizing the worker pool (0 reserves none)")
	flags.IntVar(&params.workers, "workers", 0, "worker count override (0 derives from CPUs, negative runs single-threaded)")
	flags.StringVar(&params.label, "label", "", "progress label")
	flags.BoolVar(&params.keepPartial, "keep-partial", false, "keep the incomplete file on cancellation or failure")
	flags.StringVar(&params.formats, "format", "", `per-column formatters, e.g. "Size=size,Name=upper"`)
	flags.StringVar(&params.pgTable, "pg-table", "", "export this Postgres table instead of a CSV file")
	flags.StringVar(&params.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (default $DATABASE_URL)")
	flags.BoolVarP(&params.quiet, "quiet", "q", false, "do not print progress")
	flags.StringVar(&params.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(ctx context.Context, params exportCommandParams, args []string, stdout, stderr io.Writer) error {
	level, err := logging.ParseLevel(params.logLevel)
	if err != nil {
		return err
	}
	logger := logging.New(stderr, level, "text")

	table, name, err := loadTable(ctx, params, args)
	if err != nil {
		return err
	}

	if params.formats != "" {
		formatters, err := source.ParseColumnFormats(table, params.formats)
		if err != nil {
			return err
		}
		table = source.WithFormatters(table, formatters)
	}

	label := params.label
	if label == "" {
		label = fmt.Sprintf("Exporting %s...", name)
	}

	partial := export.PartialDelete
	if params.keepPartial {
		partial = export.PartialKeep
	}

	var onProgress func(export.Progress)
	if !params.quiet {
		onProgress = newProgressPrinter(stderr).print
	}

	res, err := export.Export(ctx, table, export.Options{
		Path:            params.output,
		ChunkSize:       params.chunkSize,
		ReservedThreads: reservedOption(params.reservedThreads),
		Workers:         params.workers,
		Label:           label,
		Partial:         partial,
		OnProgress:      onProgress,
		Logger:          logger,
	})
	if res != nil && !params.quiet {
		fmt.Fprintln(stdout, res.String())
	}
	return err
}

// reservedOption converts --reserved-threads to export.Options, where zero
// selects the default. On the command line 0 means reserve nothing.
func reservedOption(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// loadTable snapshots the requested source and returns a display name for it.
func loadTable(ctx context.Context, params exportCommandParams, args []string) (export.Table, string, error) {
	if params.pgTable == "" {
		t, err := source.LoadCSV(args[0])
		return t, args[0], err
	}

	if params.databaseURL == "" {
		return nil, "", errors.New("--pg-table requires --database-url or $DATABASE_URL")
	}
	pool, err := pgxpool.New(ctx, params.databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	t, err := source.LoadPostgres(ctx, pool, params.pgTable)
	return t, params.pgTable, err
}

// progressPrinter writes progress to a terminal as a single updating line,
// or to a pipe as one line per ten percent.
type progressPrinter struct {
	w       io.Writer
	tty     bool
	lastPct int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &progressPrinter{w: w, tty: tty, lastPct: -1}
}

// print is called from the export writer goroutine only.
func (p *progressPrinter) print(prog export.Progress) {
	pct := int(prog.Percent())
	if p.tty {
		fmt.Fprintf(p.w, "\r%s %3d%% (%d/%d)", prog.Label, pct, prog.Completed, prog.Total)
		if prog.Done() {
			fmt.Fprintln(p.w)
		}
		return
	}

	step := pct / 10 * 10
	if step <= p.lastPct {
		return
	}
	p.lastPct = step
	fmt.Fprintf(p.w, "%s %d%% (%d/%d)\n", prog.Label, step, prog.Completed, prog.Total)
}
