// Package metrics implements the optional counters SPEC_FULL.md's ambient
// stack names alongside status.Snapshot: events delivered, acks
// delivered, and dead-letter depth, so an embedder can watch throughput
// and backlog without parsing log lines. Grounded on the atomic.Int64
// counting idiom hub.Hub already used inline for its own
// EventsDelivered/AcksDelivered fields, pulled into its own package so
// the counting concern is reusable and testable apart from routing.
package metrics

import "sync/atomic"

// Counters is a set of process-lifetime counters a Hub updates as it
// delivers events and acks. The zero value is ready to use.
type Counters struct {
	eventsDelivered atomic.Int64
	acksDelivered   atomic.Int64
}

// RecordEvents adds n to the events-delivered counter.
func (c *Counters) RecordEvents(n int) {
	c.eventsDelivered.Add(int64(n))
}

// RecordAck increments the acks-delivered counter.
func (c *Counters) RecordAck() {
	c.acksDelivered.Add(1)
}

// Snapshot is a point-in-time read of the counters, plus the dead-letter
// depth the caller folds in from status.Snapshot's per-thread figures.
type Snapshot struct {
	EventsDelivered int64
	AcksDelivered   int64
	DeadLetterDepth int
}

// Snapshot reads both counters' current values. deadLetterDepth is
// supplied by the caller rather than tracked here, since dead letters
// live on each thread.Thread, not on the Hub that owns these counters.
func (c *Counters) Snapshot(deadLetterDepth int) Snapshot {
	return Snapshot{
		EventsDelivered: c.eventsDelivered.Load(),
		AcksDelivered:   c.acksDelivered.Load(),
		DeadLetterDepth: deadLetterDepth,
	}
}
