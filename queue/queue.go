// Package queue implements the bounded handoff buffer that carries
// message.Message values between a Thread's own goroutine and the Hub.
// It is grounded on the teacher's core/event.channelTransport, generalized
// from a "dispatch one envelope, subscribe to a channel of them" shape
// into a batched accept_all/enqueue_all contract: backends produce
// messages in bursts (a whole directory snapshot diff, a whole inotify
// read) and the Hub wants to drain a full batch in one step rather than
// pumping a channel message-by-message.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/watchcore/message"
)

// ErrClosed is returned by Enqueue/EnqueueAll once Close has been called.
var ErrClosed = errors.New("queue: closed")

// ErrFull is returned by Enqueue/EnqueueAll when accepting the batch
// would exceed a capacity-bounded Queue's limit. Unbounded queues (the
// default, capacity 0) never return it.
var ErrFull = errors.New("queue: full")

// Queue is a single-producer/single-consumer ordered buffer with batched
// consumption. The buffer is protected by a mutex that AcceptAll also
// takes, holding it only for a slice swap; AcceptAll is therefore not
// wait-free and can wait on a producer that holds the lock.
type Queue struct {
	mu       sync.Mutex
	batch    []message.Message
	capacity int // 0 means unbounded
	notify   chan struct{} // buffered by 1; signals "a batch was enqueued"
	closed   atomic.Bool
}

// New returns an empty Queue. An optional capacity bounds how many
// messages may sit unaccepted at once (config.Config.QueueCapacity
// feeds this for the Hub's backend queues); omitting it, or passing 0,
// leaves the queue unbounded, matching every pre-existing caller.
func New(capacity ...int) *Queue {
	q := &Queue{
		notify: make(chan struct{}, 1),
	}
	if len(capacity) > 0 {
		q.capacity = capacity[0]
	}
	return q
}

// Enqueue appends one message. It fails once the queue is closed or, for
// a capacity-bounded queue, once accepting it would overflow the limit.
func (q *Queue) Enqueue(m message.Message) error {
	return q.EnqueueAll([]message.Message{m})
}

// EnqueueAll appends many messages atomically relative to AcceptAll.
func (q *Queue) EnqueueAll(ms []message.Message) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if len(ms) == 0 {
		return nil
	}
	q.mu.Lock()
	if q.capacity > 0 && len(q.batch)+len(ms) > q.capacity {
		q.mu.Unlock()
		return ErrFull
	}
	q.batch = append(q.batch, ms...)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// AcceptAll returns ownership of the current batch and resets the
// internal buffer. The returned slice may be nil if nothing was pending.
func (q *Queue) AcceptAll() []message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.batch) == 0 {
		return nil
	}
	out := q.batch
	q.batch = nil
	return out
}

// Notify returns the channel that receives a value after every successful
// non-empty EnqueueAll, at most one pending at a time. Consumers should drain with
// AcceptAll after a receive (or after any other wake reason), since
// multiple EnqueueAll calls may coalesce into a single notification.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Close marks the queue closed. Further Enqueue/EnqueueAll calls fail;
// AcceptAll continues to drain whatever remains buffered.
func (q *Queue) Close() {
	q.closed.Store(true)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}

// Len reports the number of messages currently buffered, for Status
// snapshots. It takes the producer lock, so callers should not poll it
// on a hot path.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batch)
}
