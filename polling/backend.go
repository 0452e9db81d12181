// Package polling implements the directory-snapshot-diff fallback
// backend: the single-threaded scanner spec.md §4.7 describes, used both
// for OS-limitation escapes (symlink chains, recursive-watch overflow
// delegated by the worker backend) and for user-requested polling mode.
package polling

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/watchcore/corelog"
	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
	"github.com/dmitrymomot/watchcore/thread"
)

// root is one registered watch: its channel, path, recursion flag and
// last-observed snapshot.
type root struct {
	channel   message.ChannelID
	path      string
	recursive bool
	lastScan  time.Time
	prev      snapshot
}

// Backend is the polling fallback thread.
type Backend struct {
	*thread.Thread

	mu    sync.Mutex
	roots map[message.ChannelID][]*root

	interval atomic.Int64 // time.Duration stored as nanoseconds
	throttle atomic.Int64

	logger *corelog.Sink
}

// New constructs a polling Backend wired to the given queues, with the
// interval/throttle Commands (`polling_interval`, `polling_throttle`)
// wired live into the scan loop's configuration per SPEC_FULL.md's
// resolution of spec.md's first open question. Extra thread.Options
// (e.g. WithShutdownTimeout, WithDeadLetterCapacity, sourced from
// config.Config by hub.New) are applied after the Backend's own required
// options.
func New(in, out *queue.Queue, logger *corelog.Sink, interval, throttle time.Duration, extra ...thread.Option) *Backend {
	b := &Backend{
		roots:  map[message.ChannelID][]*root{},
		logger: logger,
	}
	b.interval.Store(int64(interval))
	b.throttle.Store(int64(throttle))

	handlers := map[message.Action]thread.Handler{
		message.ActionAdd:             b.handleAdd,
		message.ActionRemove:          b.handleRemove,
		message.ActionPollingInterval: b.handleInterval,
		message.ActionPollingThrottle: b.handleThrottle,
		message.ActionDrain:           b.handleDrain,
	}

	opts := append([]thread.Option{
		thread.WithHandlers(handlers),
		thread.WithOfflineHandler(b.offline),
		thread.WithBody(b.scanLoop),
	}, extra...)
	b.Thread = thread.New("polling", in, out, logger, opts...)
	return b
}

func (b *Backend) offline(cmd message.Command) (message.Message, bool) {
	switch cmd.Action {
	case message.ActionLogFile, message.ActionLogStdout, message.ActionLogStderr, message.ActionLogDisable:
		b.applyLogCommand(cmd)
		return message.NewAck(cmd.ID, cmd.ChannelID, true, ""), false
	default:
		return message.Message{}, true
	}
}

func (b *Backend) applyLogCommand(cmd message.Command) {
	switch cmd.Action {
	case message.ActionLogFile:
		_ = b.logger.ToFile(cmd.RootPath)
	case message.ActionLogStdout:
		b.logger.ToStdout()
	case message.ActionLogStderr:
		b.logger.ToStderr()
	case message.ActionLogDisable:
		b.logger.Disable()
	}
}

func (b *Backend) handleAdd(cmd message.Command) (thread.Outcome, message.Message) {
	snap, err := take(cmd.RootPath, cmd.Recursive)
	if err != nil {
		return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, false, err.Error())
	}

	b.mu.Lock()
	b.roots[cmd.ChannelID] = append(b.roots[cmd.ChannelID], &root{
		channel:   cmd.ChannelID,
		path:      cmd.RootPath,
		recursive: cmd.Recursive,
		lastScan:  time.Now(),
		prev:      snap,
	})
	b.mu.Unlock()

	return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, true, "")
}

func (b *Backend) handleRemove(cmd message.Command) (thread.Outcome, message.Message) {
	b.mu.Lock()
	delete(b.roots, cmd.ChannelID)
	remaining := len(b.roots)
	b.mu.Unlock()

	ack := message.NewAck(cmd.ID, cmd.ChannelID, true, "")
	if remaining == 0 {
		return thread.OutcomeTriggerStop, ack
	}
	return thread.OutcomeAck, ack
}

func (b *Backend) handleInterval(cmd message.Command) (thread.Outcome, message.Message) {
	if cmd.NumericArg <= 0 {
		return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, false, "interval must be positive")
	}
	b.interval.Store(cmd.NumericArg)
	return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, true, "")
}

func (b *Backend) handleThrottle(cmd message.Command) (thread.Outcome, message.Message) {
	if cmd.NumericArg < 0 {
		return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, false, "throttle must be non-negative")
	}
	b.throttle.Store(cmd.NumericArg)
	return thread.OutcomeAck, message.NewAck(cmd.ID, cmd.ChannelID, true, "")
}

func (b *Backend) handleDrain(cmd message.Command) (thread.Outcome, message.Message) {
	return thread.OutcomeNothing, message.Message{}
}

// scanLoop is the Backend's Body: it wakes on the configured interval,
// diffing every registered root's snapshot and emitting Events (or
// Errors for roots that have stopped being reachable) onto out.
func (b *Backend) scanLoop(ctx context.Context, out *queue.Queue) error {
	for {
		interval := time.Duration(b.interval.Load())
		if interval <= 0 {
			interval = time.Second
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}

		b.scanOnce(out)
	}
}

func (b *Backend) scanOnce(out *queue.Queue) {
	throttle := time.Duration(b.throttle.Load())

	b.mu.Lock()
	var targets []*root
	for _, roots := range b.roots {
		targets = append(targets, roots...)
	}
	b.mu.Unlock()

	var events []message.Message
	for _, r := range targets {
		if throttle > 0 && time.Since(r.lastScan) < throttle {
			continue
		}

		cur, err := take(r.path, r.recursive)
		r.lastScan = time.Now()
		if err != nil {
			events = append(events, message.NewError(r.channel, err.Error(), false))
			continue
		}

		events = append(events, diff(r.channel, r.prev, cur)...)
		r.prev = cur
	}

	if len(events) > 0 {
		_ = out.EnqueueAll(events)
	}
}
