// Package thread implements the shared lifecycle state machine every
// backend (worker, polling) runs on: command dispatch against a fixed
// handler table, graceful stop with dead-letter draining, and the
// Stopped/Stopping send-path branches spec.md §4.5 requires.
//
// It is grounded on the teacher's core/queue.Worker: the semaphore-gated
// goroutine, the atomic stopping flag, and the WaitGroup-plus-timeout
// Stop() all map onto this state machine, generalized from "pull a task
// from a repository" to "run a backend Body that drains and produces
// queues."
package thread

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/watchcore/corelog"
	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
	"github.com/dmitrymomot/watchcore/result"
	"github.com/dmitrymomot/watchcore/status"
)

// Thread is the base lifecycle for a single backend goroutine. Embedders
// never construct a bare Thread; worker.Worker and polling.Backend each
// wrap one.
type Thread struct {
	Name string

	in  *queue.Queue
	out *queue.Queue

	handlers map[message.Action]Handler
	offline  OfflineHandler
	body     Body

	logger *corelog.Sink

	shutdownTimeout    time.Duration
	deadLetterCapacity int // 0 means unbounded

	state stateBox
	errs  result.SyncErrable

	mu          sync.Mutex
	starter     []message.Message // persistent config applied on next start
	deadLetters []message.Message

	runCancel context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Thread at construction.
type Option func(*Thread)

// WithHandlers installs the command dispatch table.
func WithHandlers(h map[message.Action]Handler) Option {
	return func(t *Thread) { t.handlers = h }
}

// WithOfflineHandler installs the Stopped-state command classifier.
func WithOfflineHandler(h OfflineHandler) Option {
	return func(t *Thread) { t.offline = h }
}

// WithBody installs the backend-specific blocking loop.
func WithBody(b Body) Option {
	return func(t *Thread) { t.body = b }
}

// WithShutdownTimeout bounds how long Stop waits for the body to return.
func WithShutdownTimeout(d time.Duration) Option {
	return func(t *Thread) { t.shutdownTimeout = d }
}

// WithDeadLetterCapacity bounds how many residual in-queue messages the
// dead-letter office retains across a stop/restart cycle; once full, the
// oldest entries are dropped to make room for new ones. Zero (the
// default) leaves it unbounded.
func WithDeadLetterCapacity(n int) Option {
	return func(t *Thread) { t.deadLetterCapacity = n }
}

// New constructs a Thread in the Stopped state, wired to the given
// in/out queues and logger sink.
func New(name string, in, out *queue.Queue, logger *corelog.Sink, opts ...Option) *Thread {
	t := &Thread{
		Name:            name,
		in:              in,
		out:             out,
		handlers:        map[message.Action]Handler{},
		logger:          logger,
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the thread's current lifecycle phase.
func (t *Thread) State() State { return t.state.load() }

// InQueue returns the thread's inbound command queue.
func (t *Thread) InQueue() *queue.Queue { return t.in }

// OutQueue returns the thread's outbound event/ack/error queue.
func (t *Thread) OutQueue() *queue.Queue { return t.out }

// Healthy reports whether the thread has recorded a thread-fatal error.
func (t *Thread) Healthy() bool { return t.errs.Healthy() }

// Err returns the thread-fatal error, if any.
func (t *Thread) Err() error { return t.errs.Err() }

// SetStarter replaces the persistent "starter" configuration applied at
// the top of every future run — e.g. the last log-target Command issued
// while the thread was stopped, so logs from startup land in the right
// sink.
func (t *Thread) SetStarter(msgs []message.Message) {
	t.mu.Lock()
	t.starter = append([]message.Message(nil), msgs...)
	t.mu.Unlock()
}

func (t *Thread) drainDeadLetters() []message.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.deadLetters) == 0 {
		return nil
	}
	out := t.deadLetters
	t.deadLetters = nil
	return out
}

func (t *Thread) addDeadLetters(msgs []message.Message) {
	if len(msgs) == 0 {
		return
	}
	t.mu.Lock()
	t.deadLetters = append(t.deadLetters, msgs...)
	if t.deadLetterCapacity > 0 && len(t.deadLetters) > t.deadLetterCapacity {
		dropped := len(t.deadLetters) - t.deadLetterCapacity
		t.deadLetters = t.deadLetters[dropped:]
		t.mu.Unlock()
		t.logger.Logger().Warn("dead-letter office full, dropping oldest entries",
			corelog.Component(t.Name), slog.Int("dropped", dropped))
		return
	}
	t.mu.Unlock()
}

// DeadLetterCount reports how many messages are held in the dead-letter
// office, for Status snapshots.
func (t *Thread) DeadLetterCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deadLetters)
}

// Send routes msg according to the current state (spec.md §4.5):
//
//  1. Unhealthy thread -> propagate the health error.
//  2. Stopping -> join, then re-enter as Stopped with any dead letters
//     prepended.
//  3. Stopped + Command -> classify via the offline handler: immediate
//     ack, or start the thread with this Command as its first in-queue
//     message.
//  4. Stopped + non-Command -> emit a failure Ack on the out-queue.
//  5. Running/Starting -> enqueue (dead letters first if any remain).
//
// It returns true when the caller (the Hub) should immediately drain
// replies, since a reply may already be sitting on the out-queue.
func (t *Thread) Send(ctx context.Context, msg message.Message) (bool, error) {
	if !t.errs.Healthy() {
		return false, t.errs.Err()
	}

	switch t.State() {
	case StateStopping:
		t.join()
		return t.sendStopped(msg)
	case StateStopped:
		return t.sendStopped(msg)
	default: // Starting, Running
		dl := t.drainDeadLetters()
		if len(dl) > 0 {
			_ = t.in.EnqueueAll(dl)
		}
		if err := t.in.Enqueue(msg); err != nil {
			return false, err
		}
		return true, nil
	}
}

func (t *Thread) sendStopped(msg message.Message) (bool, error) {
	cmd, isCommand := msg.AsCommand()
	if !isCommand {
		_ = t.out.Enqueue(message.NewAck(0, 0, false, "thread not running"))
		return true, nil
	}

	if t.offline == nil {
		_ = t.out.Enqueue(message.NewAck(cmd.ID, cmd.ChannelID, false, "no offline handler"))
		return true, nil
	}

	ack, runNow := t.offline(cmd)
	if !runNow {
		_ = t.out.Enqueue(ack)
		return true, nil
	}

	dl := t.drainDeadLetters()
	batch := append(dl, msg)
	_ = t.in.EnqueueAll(batch)
	t.start()
	return true, nil
}

// join blocks until a running-or-stopping thread has fully stopped.
func (t *Thread) join() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

// start transitions Stopped -> Starting and launches the body goroutine.
// Callers must hold no lock; start takes care of its own synchronization.
func (t *Thread) start() {
	if !t.state.compareAndSwap(StateStopped, StateStarting) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	t.mu.Lock()
	t.runCancel = cancel
	t.done = done
	starter := append([]message.Message(nil), t.starter...)
	t.mu.Unlock()

	if len(starter) > 0 {
		_ = t.in.EnqueueAll(starter)
	}

	t.wg.Add(1)
	go t.run(ctx, done)
}

// run is the thread's goroutine body: dispatch loop plus backend Body,
// until either requests a stop.
func (t *Thread) run(ctx context.Context, done chan struct{}) {
	defer t.wg.Done()
	defer close(done)

	t.state.store(StateRunning)

	bodyErr := make(chan error, 1)
	if t.body != nil {
		go func() {
			bodyErr <- t.runBody(ctx)
		}()
	}

	stopRequested := false
	for !stopRequested {
		select {
		case <-ctx.Done():
			stopRequested = true
		case err := <-bodyErr:
			if err != nil {
				t.errs.Fail(fmt.Errorf("thread %s: body: %w", t.Name, err))
			}
			stopRequested = true
		case <-t.in.Notify():
			if t.dispatchBatch() {
				stopRequested = true
			}
		}
	}

	t.stopping(ctx)
}

func (t *Thread) runBody(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.body(ctx, t.out)
}

// dispatchBatch drains the in-queue once and runs each Command through
// the handler table, flushing acks as a batch. It returns true if any
// handler in the batch signalled TriggerStop and none signalled
// PreventStop.
func (t *Thread) dispatchBatch() bool {
	msgs := t.in.AcceptAll()
	if len(msgs) == 0 {
		return false
	}

	var acks []message.Message
	triggerStop := false
	preventStop := false

	for _, msg := range msgs {
		cmd, ok := msg.AsCommand()
		if !ok {
			// Invariant violation: only Commands belong on the in-queue.
			t.logger.Logger().Warn("unexpected message on in-queue",
				corelog.Component("thread"), corelog.Action(message.ActionUnknown))
			continue
		}

		h, ok := t.handlers[cmd.Action]
		if !ok {
			acks = append(acks, message.NewAck(cmd.ID, cmd.ChannelID, false, "unknown command"))
			continue
		}

		outcome, ack := h(cmd)
		switch outcome {
		case OutcomeTriggerStop:
			triggerStop = true
		case OutcomePreventStop:
			preventStop = true
		}
		if ack.Tag == message.TagAck {
			acks = append(acks, ack)
		}
	}

	if len(acks) > 0 {
		_ = t.out.EnqueueAll(acks)
	}

	return triggerStop && !preventStop
}

// stopping runs the Stopping -> Stopped transition: residual in-queue
// contents become dead letters, a drain Command is put on the out-queue,
// logging is disabled, and the state is finally set to Stopped. The Hub
// takes no action on that drain Command beyond draining the out-queue;
// the dead letters are re-posted only on this thread's next Send.
func (t *Thread) stopping(ctx context.Context) {
	t.state.store(StateStopping)

	if t.runCancel != nil {
		t.runCancel()
	}

	remaining := t.in.AcceptAll()
	t.addDeadLetters(remaining)

	_ = t.out.Enqueue(message.NewCommand(0, message.ActionDrain, 0, "", false))

	t.logger.Disable()
	t.state.store(StateStopped)
}

// Stop requests a graceful shutdown and waits up to the configured
// shutdown timeout for the body goroutine to return.
func (t *Thread) Stop() error {
	if t.State() == StateStopped {
		return nil
	}

	t.mu.Lock()
	cancel := t.runCancel
	done := t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(t.shutdownTimeout):
		return fmt.Errorf("thread %s: shutdown timeout exceeded after %s", t.Name, t.shutdownTimeout)
	}
}

// Snapshot returns a status.ThreadSnapshot for this thread.
func (t *Thread) Snapshot() status.ThreadSnapshot {
	return status.ThreadSnapshot{
		Name:        t.Name,
		State:       status.ThreadState(t.State().String()),
		InQueueLen:  t.in.Len(),
		OutQueueLen: t.out.Len(),
		DeadLetters: t.DeadLetterCount(),
	}
}
