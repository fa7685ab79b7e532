package queue

import (
	"sync"

	"github.com/hashrelay/hashrelay/internal/core/domain"
)

// Intake is an unbounded FIFO of submission requests. Push never blocks the
// caller; Pop blocks until an item arrives or the queue is closed. The queue
// is unbounded on purpose: rejecting a legitimate, deduplicated request under
// transient load is worse than a growing backlog, and the worker pool bounds
// actual processing.
type Intake struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []domain.SubmissionRequest
	closed bool
}

func NewIntake() *Intake {
	q := &Intake{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a request. Pushing to a closed queue is a no-op.
func (q *Intake) Push(req domain.SubmissionRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, req)
	q.cond.Signal()
}

// Pop returns the oldest request. It blocks while the queue is empty and
// returns ok=false once the queue is closed and drained.
func (q *Intake) Pop() (domain.SubmissionRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return domain.SubmissionRequest{}, false
	}
	req := q.items[0]
	q.items = q.items[1:]
	return req, true
}

// Len reports the current backlog.
func (q *Intake) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes all blocked Pop callers. Items already queued are still
// delivered; new pushes are dropped.
func (q *Intake) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
