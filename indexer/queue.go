package indexer

import "sync"

// queue is an unbounded FIFO of deliveries. Producers never block, so a
// slow consumer cannot hold up the step that emitted the event.
type queue struct {
	mu     sync.Mutex
	items  []Delivery
	closed bool
	signal chan struct{} // buffered, size 1; closed on Close
}

func newQueue() *queue {
	return &queue{
		items:  make([]Delivery, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// push appends d. It returns false once the queue is closed.
func (q *queue) push(d Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, d)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop removes the front delivery without blocking.
func (q *queue) pop() (Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Delivery{}, false
	}
	d := q.items[0]
	q.items[0] = Delivery{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return d, true
}

// drained reports whether the queue is closed and empty.
func (q *queue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

func (q *queue) wait() <-chan struct{} { return q.signal }

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close stops further pushes and wakes the consumer. Items already queued
// are still delivered.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
