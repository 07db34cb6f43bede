package export

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every option validation failure.
	ErrInvalidConfig = errors.New("invalid export configuration")

	// ErrCancelled is returned by Run when the context is cancelled before
	// every row has been written.
	ErrCancelled = errors.New("export cancelled")

	// ErrAlreadyRun is returned when Run is called twice on the same Pipeline.
	ErrAlreadyRun = errors.New("export pipeline already run")
)

// IOError reports a failure on the export destination.
type IOError struct {
	Op   string // "open", "write", "flush" or "close"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("export %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RenderError describes a cell that could not be formatted.
type RenderError struct {
	Row int64
	Col int
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render row %d col %d: %v", e.Row, e.Col, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
