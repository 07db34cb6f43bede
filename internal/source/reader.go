package source

// reader.go cleans CSV input before parsing:
//
//   - a leading UTF-8 BOM (written by Excel and other Windows tools) is dropped
//   - invalid UTF-8 bytes become '?'
//   - bytes consumed are counted so load progress can be logged

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cleanReader strips a BOM and replaces invalid UTF-8 on the fly.
type cleanReader struct {
	br      *bufio.Reader
	checked bool
	pending []byte
}

func newCleanReader(r io.Reader) *cleanReader {
	return &cleanReader{br: bufio.NewReader(r)}
}

func (r *cleanReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]

	var enc [utf8.UTFMax]byte
	for n < len(p) {
		// Don't block on the underlying reader once we have something.
		if n > 0 && r.br.Buffered() == 0 {
			break
		}
		c, size, err := r.br.ReadRune()
		if err != nil {
			if err == io.EOF && n > 0 {
				return n, nil
			}
			return n, err
		}

		k := 1
		if c == utf8.RuneError && size == 1 {
			enc[0] = '?'
		} else {
			k = utf8.EncodeRune(enc[:], c)
		}
		m := copy(p[n:], enc[:k])
		n += m
		if m < k {
			r.pending = append(r.pending[:0], enc[m:k]...)
		}
	}
	return n, nil
}

// CountingReader counts bytes read through it. Count may be read from any
// goroutine.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	total int64
}

// NewCountingReader wraps r. total is the expected size, or 0 if unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the bytes read so far.
func (c *CountingReader) Count() int64 { return c.n.Load() }

// Percent returns read progress as 0-100, or 0 when the total is unknown.
func (c *CountingReader) Percent() int {
	if c.total <= 0 {
		return 0
	}
	return int(c.n.Load() * 100 / c.total)
}

// WrapReader applies BOM stripping and UTF-8 cleanup, then counts the
// cleaned bytes.
func WrapReader(r io.Reader, total int64) *CountingReader {
	return NewCountingReader(newCleanReader(r), total)
}
