package export

import "sync"

// ReorderBuffer holds rendered units sorted by StartRow until the writer is
// ready for them.
type ReorderBuffer struct {
	mu    sync.Mutex
	units []*WorkUnit
	ready chan struct{}
}

// NewReorderBuffer returns an empty buffer.
func NewReorderBuffer() *ReorderBuffer {
	return &ReorderBuffer{ready: make(chan struct{}, 1)}
}

// Insert adds a rendered unit and wakes the writer.
func (b *ReorderBuffer) Insert(u *WorkUnit) {
	b.mu.Lock()
	// Sorted insert, scanning from the tail.
	i := len(b.units)
	for i > 0 && b.units[i-1].StartRow > u.StartRow {
		i--
	}
	b.units = append(b.units, nil)
	copy(b.units[i+1:], b.units[i:])
	b.units[i] = u
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// PeekIfNext removes and returns the head unit only if it starts at expected.
// Otherwise the buffer is left untouched.
func (b *ReorderBuffer) PeekIfNext(expected int64) (*WorkUnit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.units) == 0 || b.units[0].StartRow != expected {
		return nil, false
	}
	u := b.units[0]
	b.units[0] = nil
	b.units = b.units[1:]
	return u, true
}

// Ready receives a value after at least one Insert since the last receive.
func (b *ReorderBuffer) Ready() <-chan struct{} { return b.ready }

// Len returns the number of buffered units.
func (b *ReorderBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.units)
}
