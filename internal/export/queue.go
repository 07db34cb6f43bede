package export

import "sync"

// WorkQueue is a FIFO of units waiting to be rendered. It is filled before
// rendering starts and only drained afterwards.
type WorkQueue struct {
	mu    sync.Mutex
	units []*WorkUnit
	head  int
}

// Push appends units to the tail of the queue.
func (q *WorkQueue) Push(units ...*WorkUnit) {
	q.mu.Lock()
	q.units = append(q.units, units...)
	q.mu.Unlock()
}

// TryPop removes the head of the queue. It never blocks; ok is false when the
// queue is empty.
func (q *WorkQueue) TryPop() (u *WorkUnit, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.units) {
		return nil, false
	}
	u = q.units[q.head]
	q.units[q.head] = nil
	q.head++
	return u, true
}

// Len returns the number of queued units.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units) - q.head
}
