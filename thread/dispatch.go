package thread

import (
	"context"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
)

// Outcome is a command handler's verdict, consumed by the dispatch loop
// to decide whether to keep running.
type Outcome int

const (
	// OutcomeAck means the handler already produced an ack message; no
	// further action.
	OutcomeAck Outcome = iota
	// OutcomeNothing means no ack is owed (rare; most commands ack).
	OutcomeNothing
	// OutcomeTriggerStop means the thread should begin shutting down
	// after this dispatch batch finishes flushing.
	OutcomeTriggerStop
	// OutcomePreventStop overrides a TriggerStop seen earlier in the same
	// batch (e.g. a `remove` for the last channel raced an `add`).
	OutcomePreventStop
)

// Handler processes one Command and returns the dispatch outcome plus an
// optional ack message (zero value if OutcomeNothing).
type Handler func(cmd message.Command) (Outcome, message.Message)

// OfflineHandler classifies a Command received while the thread is
// Stopped: either it can be answered immediately without starting the
// thread (ack, false), or it must start the thread and be enqueued as the
// first in-queue message (zero Message, true).
type OfflineHandler func(cmd message.Command) (ack message.Message, runNow bool)

// Body is the backend-specific loop (Worker.listen, Polling's scan loop).
// It blocks, producing Event/Error/Command messages onto out, until ctx
// is cancelled, and returns an error only for a thread-fatal condition.
type Body func(ctx context.Context, out *queue.Queue) error
