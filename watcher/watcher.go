// Package watcher is the composition root and public API: the three
// embedder-facing calls spec.md §6 describes (configure/watch/unwatch),
// composed from hub.Hub the way the teacher's app/simple.App composes its
// own dependencies — config.Load, a default corelog.Sink, then
// functional options, then lazy defaults for anything an option didn't
// set.
package watcher

import (
	"context"
	"runtime"
	"time"

	"github.com/dmitrymomot/watchcore/config"
	"github.com/dmitrymomot/watchcore/corelog"
	"github.com/dmitrymomot/watchcore/hub"
	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/status"
	"github.com/dmitrymomot/watchcore/worker"
)

// ChannelID re-exports message.ChannelID so callers never need to import
// the message package directly.
type ChannelID = message.ChannelID

// Subscriber re-exports hub.Subscriber.
type Subscriber = hub.Subscriber

// Event re-exports message.Event, the event object shape spec.md §6
// defines.
type Event = message.Event

// WatchOptions re-exports hub.WatchOptions.
type WatchOptions = hub.WatchOptions

// ConfigureOptions re-exports hub.ConfigureOptions.
type ConfigureOptions = hub.ConfigureOptions

// Watcher is the public facade over a Hub instance.
type Watcher struct {
	hub    *hub.Hub
	logger *corelog.Sink
	cfg    config.Config
}

// Option configures a Watcher during construction, following the
// teacher's mux_options.go functional-options idiom.
type Option func(*options)

type options struct {
	logger             *corelog.Sink
	queueCapacity      int
	shutdownTimeout    time.Duration
	deadLetterCapacity int
	pollingInterval    int64
	pollingThrottle    int64
	platform           worker.Platform
}

// WithLogger overrides the default stderr-JSON corelog.Sink.
func WithLogger(s *corelog.Sink) Option {
	return func(o *options) { o.logger = s }
}

// WithQueueCapacity bounds how many messages may sit unaccepted on each
// backend queue at once; 0 leaves queues unbounded. Without this option,
// config.Config.QueueCapacity applies (256 unless set in the environment).
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCapacity = n }
}

// WithShutdownTimeout bounds how long Close waits for each backend
// thread to stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { o.shutdownTimeout = d }
}

// WithDeadLetterCapacity bounds how many residual messages a backend
// thread's dead-letter office retains across a stop/restart cycle; 0
// leaves it unbounded. Without this option,
// config.Config.DeadLetterCapacity applies (64 unless set in the
// environment).
func WithDeadLetterCapacity(n int) Option {
	return func(o *options) { o.deadLetterCapacity = n }
}

// WithPollingInterval overrides the polling backend's scan interval.
func WithPollingInterval(ns int64) Option {
	return func(o *options) { o.pollingInterval = ns }
}

// WithPollingThrottle overrides the polling backend's per-root throttle.
func WithPollingThrottle(ns int64) Option {
	return func(o *options) { o.pollingThrottle = ns }
}

// WithPlatform overrides the OS-native worker.Platform implementation,
// primarily for tests.
func WithPlatform(p worker.Platform) Option {
	return func(o *options) { o.platform = p }
}

// New constructs a Watcher: loads Config from the environment, applies
// any Options over it, and wires a Hub driving the current platform's
// native worker backend plus the polling fallback.
func New(opts ...Option) (*Watcher, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	o := &options{
		logger:             corelog.New(),
		queueCapacity:      cfg.QueueCapacity,
		shutdownTimeout:    cfg.ShutdownTimeout,
		deadLetterCapacity: cfg.DeadLetterCapacity,
		pollingInterval:    int64(cfg.PollingInterval),
		pollingThrottle:    int64(cfg.PollingThrottle),
	}
	for _, opt := range opts {
		opt(o)
	}

	if cfg.LogFile != "" {
		if err := o.logger.ToFile(cfg.LogFile); err != nil {
			return nil, err
		}
	}

	if o.platform == nil {
		p, err := worker.NewPlatform()
		if err != nil {
			return nil, err
		}
		o.platform = p
	}

	h := hub.New(o.platform, o.logger, hub.Config{
		QueueCapacity:      o.queueCapacity,
		ShutdownTimeout:    o.shutdownTimeout,
		DeadLetterCapacity: o.deadLetterCapacity,
		PollingInterval:    o.pollingInterval,
		PollingThrottle:    o.pollingThrottle,
	})

	return &Watcher{hub: h, logger: o.logger, cfg: cfg}, nil
}

// Configure applies process-wide logging/polling settings.
func (w *Watcher) Configure(ctx context.Context, opts ConfigureOptions) error {
	done := make(chan error, 1)
	w.hub.Configure(ctx, opts, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch registers root (recursively or not, natively or polled) and
// delivers events for it to sub until Unwatch is called.
func (w *Watcher) Watch(ctx context.Context, root string, opts WatchOptions, sub Subscriber) (ChannelID, error) {
	done := make(chan error, 1)

	channel, err := w.hub.Watch(ctx, root, opts, func(ackErr error, _ ChannelID) {
		done <- ackErr
	}, sub)
	if err != nil {
		return 0, err
	}

	select {
	case ackErr := <-done:
		if ackErr != nil {
			return 0, ackErr
		}
		return channel, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Unwatch removes channel's registration from both backends.
func (w *Watcher) Unwatch(ctx context.Context, channel ChannelID) error {
	done := make(chan error, 1)
	w.hub.Unwatch(ctx, channel, func(err error) { done <- err })
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of queue depths, channel counts, and thread
// states.
func (w *Watcher) Status() status.Snapshot {
	return w.hub.Status()
}

// Close stops both backend threads.
func (w *Watcher) Close(ctx context.Context) error {
	return w.hub.Close()
}

// DefaultParallelism reports the number of OS threads available to the
// runtime, informational only — the core itself runs exactly two backend
// threads (worker and polling) regardless of GOMAXPROCS.
func DefaultParallelism() int {
	return runtime.GOMAXPROCS(0)
}
