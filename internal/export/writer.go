package export

// writer.go implements the single goroutine that owns the destination.
//
// The writer waits on the reorder buffer's ready channel and appends every
// unit that continues the written prefix. Each unit is flushed to the sink
// before progress advances, so Completed never counts rows still sitting in
// the process.
// Nothing else touches the sink, so rows land in order no matter how many
// workers rendered them.

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

const sinkBufferSize = 64 << 10

// countingWriter tracks bytes that reached the underlying sink.
type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

type sequentialWriter struct {
	path    string
	header  string
	buffer  *ReorderBuffer
	tracker *ProgressTracker
	logger  *slog.Logger

	sink    io.WriteCloser
	counter *countingWriter
	out     *bufio.Writer
}

func newSequentialWriter(path, header string, sink io.WriteCloser, buffer *ReorderBuffer, tracker *ProgressTracker, logger *slog.Logger) *sequentialWriter {
	counter := &countingWriter{w: sink}
	return &sequentialWriter{
		path:    path,
		header:  header,
		buffer:  buffer,
		tracker: tracker,
		logger:  logger,
		sink:    sink,
		counter: counter,
		out:     bufio.NewWriterSize(counter, sinkBufferSize),
	}
}

// run writes units in order until every row is written, the context is
// cancelled, or the sink fails.
func (w *sequentialWriter) run(ctx context.Context) error {
	total := w.tracker.Total()
	if total == 0 {
		return w.write([]byte(w.header))
	}

	for {
		if err := w.drain(); err != nil {
			return err
		}
		if w.tracker.Completed() >= total {
			return nil
		}

		select {
		case <-w.buffer.Ready():
		case <-ctx.Done():
			if err := w.drain(); err != nil {
				return err
			}
			if w.tracker.Completed() >= total {
				return nil
			}
			return ErrCancelled
		}
	}
}

// drain writes every buffered unit that continues the written prefix.
func (w *sequentialWriter) drain() error {
	for {
		u, ok := w.buffer.PeekIfNext(w.tracker.Completed())
		if !ok {
			return nil
		}
		if u.Header != "" {
			if err := w.write([]byte(u.Header)); err != nil {
				return err
			}
		}
		if err := w.write(u.text); err != nil {
			return err
		}
		if err := w.out.Flush(); err != nil {
			return &IOError{Op: "flush", Path: w.path, Err: err}
		}
		w.tracker.Advance(u.Rows())
		w.logger.Debug("unit written", "start_row", u.StartRow, "end_row", u.EndRow)
	}
}

func (w *sequentialWriter) write(p []byte) error {
	if _, err := w.out.Write(p); err != nil {
		return &IOError{Op: "write", Path: w.path, Err: err}
	}
	return nil
}

// close flushes buffered output and releases the sink. It always closes the
// sink, even when flushing fails.
func (w *sequentialWriter) close() error {
	flushErr := w.out.Flush()
	closeErr := w.sink.Close()
	if flushErr != nil {
		return &IOError{Op: "flush", Path: w.path, Err: flushErr}
	}
	if closeErr != nil {
		return &IOError{Op: "close", Path: w.path, Err: closeErr}
	}
	return nil
}

func (w *sequentialWriter) bytesWritten() int64 { return w.counter.n.Load() }
