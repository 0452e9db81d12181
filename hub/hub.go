// Package hub implements the channel registry and command/event router
// described by spec.md §4.8 — the only component that talks directly to
// the embedder. It is grounded on original_source/src/hub.cpp for control
// flow (watch/unwatch/handle_events/send_command) and on the teacher's
// core/event.PublisherTransport/ProcessorTransport split for the Go shape
// of "dispatch a command" vs. "subscribe to a stream of results."
//
// Per spec.md §9's own design note, the Hub is not a process-wide
// singleton here: callers construct one explicitly via New, and the
// watcher package's composition root owns the single instance an
// application actually uses.
package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/watchcore/corelog"
	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/metrics"
	"github.com/dmitrymomot/watchcore/polling"
	"github.com/dmitrymomot/watchcore/queue"
	"github.com/dmitrymomot/watchcore/status"
	"github.com/dmitrymomot/watchcore/thread"
	"github.com/dmitrymomot/watchcore/worker"
)

// Subscriber is the embedder-facing capability interface spec.md §9
// recommends in place of two raw ack/event callbacks held across
// threads: OnEvents delivers one batch of same-channel events in
// production order; OnError delivers a single out-of-band error.
type Subscriber interface {
	OnEvents(events []message.Event)
	OnError(err error)
}

// AckFunc is the ack callback shape for Watch: nil error and a valid
// ChannelID on success, or an error and a zero ChannelID on failure.
type AckFunc func(err error, channel message.ChannelID)

// WatchOptions mirrors spec.md §6's `watch` opts argument.
type WatchOptions struct {
	Poll      bool
	Recursive bool
}

// ConfigureOptions mirrors spec.md §6's `configure` opts argument.
type ConfigureOptions struct {
	MainLogFile     string
	WorkerLogFile   string
	PollingLogFile  string
	PollingInterval int64 // nanoseconds; 0 = leave unchanged
	PollingThrottle int64 // nanoseconds; 0 = leave unchanged
}

// backend is satisfied by *worker.Worker and *polling.Backend via their
// embedded *thread.Thread.
type backend interface {
	Send(ctx context.Context, msg message.Message) (bool, error)
	OutQueue() *queue.Queue
	Snapshot() status.ThreadSnapshot
	Stop() error
}

type channelEntry struct {
	sub Subscriber
}

type ackEntry struct {
	channel message.ChannelID
	fn      func(err error, channel message.ChannelID)
}

// Hub is the channel registry and router. It owns the worker and polling
// backend threads and allocates every CommandID/ChannelID used against
// them.
type Hub struct {
	cmdIDs  *message.IDGenerator
	chanIDs *message.IDGenerator

	worker  backend
	polling *polling.Backend

	logger *corelog.Sink

	mu          sync.Mutex
	channels    map[message.ChannelID]*channelEntry
	pendingAcks map[message.CommandID]ackEntry

	counters metrics.Counters

	pumpCancel context.CancelFunc
	pumpDone   chan struct{}
}

// Config bundles the ambient knobs config.Config loads from the
// environment (or a caller's Option overrides) that the Hub threads down
// into its two backend Threads at construction time.
type Config struct {
	QueueCapacity      int           // 0 = unbounded
	ShutdownTimeout    time.Duration // 0 = thread package's own default
	DeadLetterCapacity int           // 0 = unbounded
	PollingInterval    int64         // nanoseconds
	PollingThrottle    int64         // nanoseconds
}

// New constructs a Hub driving a freshly-built worker.Worker (over
// platform) and polling.Backend, each with its own pair of in/out queues.
func New(platform worker.Platform, logger *corelog.Sink, cfg Config) *Hub {
	workerIn, workerOut := queue.New(cfg.QueueCapacity), queue.New(cfg.QueueCapacity)
	pollIn, pollOut := queue.New(cfg.QueueCapacity), queue.New(cfg.QueueCapacity)

	var threadOpts []thread.Option
	if cfg.ShutdownTimeout > 0 {
		threadOpts = append(threadOpts, thread.WithShutdownTimeout(cfg.ShutdownTimeout))
	}
	if cfg.DeadLetterCapacity > 0 {
		threadOpts = append(threadOpts, thread.WithDeadLetterCapacity(cfg.DeadLetterCapacity))
	}

	w := worker.New(platform, workerIn, workerOut, logger, threadOpts...)
	p := polling.New(pollIn, pollOut, logger, time.Duration(cfg.PollingInterval), time.Duration(cfg.PollingThrottle), threadOpts...)

	pumpCtx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cmdIDs:      message.NewIDGenerator(),
		chanIDs:     message.NewIDGenerator(),
		worker:      w,
		polling:     p,
		logger:      logger,
		channels:    map[message.ChannelID]*channelEntry{},
		pendingAcks: map[message.CommandID]ackEntry{},
		pumpCancel:  cancel,
		pumpDone:    make(chan struct{}),
	}
	go h.pump(pumpCtx)
	return h
}

// pump wakes HandleEvents whenever either backend's out-queue signals a
// successful enqueue, so Acks/Events/Errors are delivered without the
// embedder having to poll. Watch/Unwatch/Configure also call HandleEvents
// inline for their own drainNow signal, so a reply already sitting on the
// queue is never left waiting on the next wake.
func (h *Hub) pump(ctx context.Context) {
	defer close(h.pumpDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.worker.OutQueue().Notify():
			h.HandleEvents(ctx)
		case <-h.polling.OutQueue().Notify():
			h.HandleEvents(ctx)
		}
	}
}

func (h *Hub) registerAck(id message.CommandID, channel message.ChannelID, fn func(error, message.ChannelID)) {
	if id == 0 {
		return
	}
	h.mu.Lock()
	h.pendingAcks[id] = ackEntry{channel: channel, fn: fn}
	h.mu.Unlock()
}

// Watch registers a new channel and dispatches an `add` Command to
// either the worker or the polling backend per opts.Poll.
func (h *Hub) Watch(ctx context.Context, root string, opts WatchOptions, ack AckFunc, sub Subscriber) (message.ChannelID, error) {
	channel := message.ChannelID(h.chanIDs.Next())

	h.mu.Lock()
	h.channels[channel] = &channelEntry{sub: sub}
	h.mu.Unlock()

	target := h.pickTarget(opts.Poll)
	cmdID := message.CommandID(h.cmdIDs.Next())
	cmd := message.NewCommand(cmdID, message.ActionAdd, channel, root, opts.Recursive)

	h.registerAck(cmdID, channel, func(err error, _ message.ChannelID) {
		if err != nil {
			h.mu.Lock()
			delete(h.channels, channel)
			h.mu.Unlock()
			ack(err, 0)
			return
		}
		ack(nil, channel)
	})

	drainNow, err := target.Send(ctx, cmd)
	if err != nil {
		h.mu.Lock()
		delete(h.channels, channel)
		delete(h.pendingAcks, cmdID)
		h.mu.Unlock()
		return 0, err
	}
	if drainNow {
		h.HandleEvents(ctx)
	}
	return channel, nil
}

func (h *Hub) pickTarget(poll bool) backend {
	if poll {
		return h.polling
	}
	return h.worker
}

// Unwatch issues `remove` Commands to both backends (a channel may have
// been split across them), aggregates the two acks via an all-callback,
// then removes the channel's Subscriber. Unwatching an unknown channel
// acks with no error, per spec.md §8's boundary case.
func (h *Hub) Unwatch(ctx context.Context, channel message.ChannelID, ack func(error)) {
	h.mu.Lock()
	_, known := h.channels[channel]
	h.mu.Unlock()

	if !known {
		h.logger.Logger().Warn("unwatch of unknown channel", corelog.ChannelID(channel))
		ack(nil)
		return
	}

	all := newAllCallback(2, func(err error) {
		h.mu.Lock()
		delete(h.channels, channel)
		h.mu.Unlock()
		ack(err)
	})

	for _, target := range []backend{h.worker, h.polling} {
		cmdID := message.CommandID(h.cmdIDs.Next())
		cmd := message.NewCommand(cmdID, message.ActionRemove, channel, "", false)
		h.registerAck(cmdID, channel, func(err error, _ message.ChannelID) {
			all.report(err)
		})

		drainNow, err := target.Send(ctx, cmd)
		if err != nil {
			h.mu.Lock()
			delete(h.pendingAcks, cmdID)
			h.mu.Unlock()
			all.report(err)
			continue
		}
		if drainNow {
			h.HandleEvents(ctx)
		}
	}
}

// Configure applies process-wide logging/polling settings, issuing the
// corresponding Commands to every affected backend and acking once all
// have completed.
func (h *Hub) Configure(ctx context.Context, opts ConfigureOptions, ack func(error)) {
	type dispatch struct {
		target backend
		cmd    message.Message
	}
	var dispatches []dispatch

	if opts.WorkerLogFile != "" {
		dispatches = append(dispatches, dispatch{h.worker, message.NewCommand(0, message.ActionLogFile, 0, opts.WorkerLogFile, false)})
	}
	if opts.PollingLogFile != "" {
		dispatches = append(dispatches, dispatch{h.polling, message.NewCommand(0, message.ActionLogFile, 0, opts.PollingLogFile, false)})
	}
	if opts.PollingInterval > 0 {
		cmd := message.NewCommand(0, message.ActionPollingInterval, 0, "", false)
		cmd.Command.NumericArg = opts.PollingInterval
		dispatches = append(dispatches, dispatch{h.polling, cmd})
	}
	if opts.PollingThrottle > 0 {
		cmd := message.NewCommand(0, message.ActionPollingThrottle, 0, "", false)
		cmd.Command.NumericArg = opts.PollingThrottle
		dispatches = append(dispatches, dispatch{h.polling, cmd})
	}
	if opts.MainLogFile != "" {
		_ = h.logger.ToFile(opts.MainLogFile)
	}

	if len(dispatches) == 0 {
		ack(nil)
		return
	}
	all := newAllCallback(len(dispatches), ack)

	for _, d := range dispatches {
		cmdID := message.CommandID(h.cmdIDs.Next())
		cmd := d.cmd
		cmd.Command.ID = cmdID
		h.registerAck(cmdID, 0, func(err error, _ message.ChannelID) {
			all.report(err)
		})
		if _, err := d.target.Send(ctx, cmd); err != nil {
			h.mu.Lock()
			delete(h.pendingAcks, cmdID)
			h.mu.Unlock()
			all.report(err)
		}
	}

	h.HandleEvents(ctx)
}

// HandleEvents drains both backends' out-queues, delivering Acks, Events
// (batched per channel), and Errors, and re-routing worker-delegated
// Command(add) messages to the polling backend. It loops until both
// queues report empty, since delivering one batch may itself enqueue
// more work (e.g. the auto-unwatch after a fatal Error, or a delegated
// add being forwarded to polling).
func (h *Hub) HandleEvents(ctx context.Context) {
	for {
		worked := h.handleEventsFrom(ctx, h.worker, true) || h.handleEventsFrom(ctx, h.polling, false)
		if !worked {
			return
		}
	}
}

func (h *Hub) handleEventsFrom(ctx context.Context, b backend, fromWorker bool) bool {
	msgs := b.OutQueue().AcceptAll()
	if len(msgs) == 0 {
		return false
	}

	eventsByChannel := map[message.ChannelID][]message.Event{}

	for _, msg := range msgs {
		switch msg.Tag {
		case message.TagAck:
			h.deliverAck(msg.Ack)
		case message.TagEvent:
			eventsByChannel[msg.Event.ChannelID] = append(eventsByChannel[msg.Event.ChannelID], msg.Event)
		case message.TagError:
			h.deliverError(ctx, msg.Error)
		case message.TagCommand:
			h.handleInternalCommand(ctx, msg.Command, fromWorker)
		}
	}

	for channel, events := range eventsByChannel {
		h.mu.Lock()
		entry, ok := h.channels[channel]
		h.mu.Unlock()
		if !ok {
			continue // channel unwatched concurrently; drop silently per spec.md §3.
		}
		h.counters.RecordEvents(len(events))
		entry.sub.OnEvents(events)
	}

	return true
}

func (h *Hub) deliverAck(a message.Ack) {
	h.mu.Lock()
	entry, ok := h.pendingAcks[a.OriginalCommandID]
	if ok {
		delete(h.pendingAcks, a.OriginalCommandID)
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Logger().Warn("ack for unknown command", corelog.CommandID(a.OriginalCommandID))
		return
	}

	h.counters.RecordAck()
	if a.Success {
		entry.fn(nil, a.ChannelID)
	} else {
		entry.fn(fmt.Errorf("%s", a.Message), 0)
	}
}

func (h *Hub) deliverError(ctx context.Context, e message.Error) {
	h.mu.Lock()
	entry, ok := h.channels[e.ChannelID]
	h.mu.Unlock()
	if ok {
		entry.sub.OnError(fmt.Errorf("%s", e.Message))
	}

	if e.Fatal {
		h.Unwatch(ctx, e.ChannelID, func(error) {})
	}
}

// handleInternalCommand implements spec.md §4.8's "Command(drain) ...
// Command(add) from worker thread: forward to polling thread."
func (h *Hub) handleInternalCommand(ctx context.Context, cmd message.Command, fromWorker bool) {
	switch cmd.Action {
	case message.ActionDrain:
		// The source thread has already folded its residual in-queue into
		// its dead-letter office by the time this reaches the Hub; nothing
		// further to do beyond having drained its out-queue, which this
		// call already did.
	case message.ActionAdd:
		if !fromWorker {
			return
		}
		cmdID := message.CommandID(h.cmdIDs.Next())
		cmd.ID = cmdID
		h.registerAck(cmdID, cmd.ChannelID, func(err error, _ message.ChannelID) {
			if err != nil {
				h.logger.Logger().Warn("delegated add failed", corelog.ChannelID(cmd.ChannelID), corelog.Err(err))
				h.deliverError(ctx, message.Error{ChannelID: cmd.ChannelID, Message: err.Error(), Fatal: false})
			}
		})
		_, _ = h.polling.Send(ctx, message.Message{Tag: message.TagCommand, Command: cmd})
	}
}

// Status returns a snapshot of queue depths, channel counts, and thread
// states.
func (h *Hub) Status() status.Snapshot {
	h.mu.Lock()
	channels := len(h.channels)
	pending := len(h.pendingAcks)
	h.mu.Unlock()

	threads := []status.ThreadSnapshot{h.worker.Snapshot(), h.polling.Snapshot()}
	var deadLetterDepth int
	for _, t := range threads {
		deadLetterDepth += t.DeadLetters
	}

	counters := h.counters.Snapshot(deadLetterDepth)

	return status.Snapshot{
		Channels:        channels,
		PendingAcks:     pending,
		Threads:         threads,
		EventsDelivered: counters.EventsDelivered,
		AcksDelivered:   counters.AcksDelivered,
		DeadLetterDepth: counters.DeadLetterDepth,
	}
}

// Close stops both backend threads, waiting up to their configured
// shutdown timeouts.
func (h *Hub) Close() error {
	var g errgroup.Group
	g.Go(h.worker.Stop)
	g.Go(h.polling.Stop)
	err := g.Wait()

	h.pumpCancel()
	<-h.pumpDone
	return err
}

