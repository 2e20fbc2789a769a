package pool

import (
	"github.com/eapache/queue"
)

// Queue is the FIFO of instances owned by one template. It is backed by a
// ring buffer and is not safe for concurrent use; the Manager serializes
// every access.
type Queue struct {
	q *queue.Queue
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{q: queue.New()}
}

// Len returns the number of instances in the queue.
func (q *Queue) Len() int {
	return q.q.Length()
}

// Enqueue appends inst to the back of the queue.
func (q *Queue) Enqueue(inst *Instance) {
	q.q.Add(inst)
}

// Dequeue removes and returns the front instance. It returns
// ErrPoolExhausted if the queue is empty.
func (q *Queue) Dequeue() (*Instance, error) {
	if q.q.Length() == 0 {
		return nil, ErrPoolExhausted
	}
	return q.q.Remove().(*Instance), nil
}

// PushFront puts inst back at the front of the queue. It rotates the ring,
// so it costs O(n).
func (q *Queue) PushFront(inst *Instance) {
	n := q.q.Length()
	q.q.Add(inst)
	for range n {
		q.q.Add(q.q.Remove())
	}
}

// Peek returns the front instance without removing it.
func (q *Queue) Peek() (*Instance, bool) {
	if q.q.Length() == 0 {
		return nil, false
	}
	return q.q.Peek().(*Instance), true
}

// Each calls fn for every instance, front to back.
func (q *Queue) Each(fn func(*Instance)) {
	for i := 0; i < q.q.Length(); i++ {
		fn(q.q.Get(i).(*Instance))
	}
}

// Snapshot returns the instances front to back.
func (q *Queue) Snapshot() []*Instance {
	out := make([]*Instance, 0, q.q.Length())
	q.Each(func(inst *Instance) {
		out = append(out, inst)
	})
	return out
}

// Drain empties the queue and returns its former contents front to back.
func (q *Queue) Drain() []*Instance {
	out := make([]*Instance, 0, q.q.Length())
	for q.q.Length() > 0 {
		out = append(out, q.q.Remove().(*Instance))
	}
	return out
}
