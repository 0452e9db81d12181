// Package message defines the wire shape that flows between the Hub and
// the backend threads: a closed tagged variant plus the builders that
// produce it.
package message

import "sync/atomic"

// CommandID identifies a Command for ack correlation. Zero means "no ack
// requested."
type CommandID uint64

// ChannelID identifies a watch registration. Zero means "no channel."
type ChannelID uint64

// IDGenerator hands out monotonically increasing, never-reused IDs for a
// single process lifetime. Each Hub owns its own generator; there is no
// package-level counter.
type IDGenerator struct {
	next atomic.Uint64
}

// NewIDGenerator returns a generator whose first Next() call yields 1.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next value in the sequence, starting at 1 so that the
// zero value remains a valid null sentinel.
func (g *IDGenerator) Next() uint64 {
	return g.next.Add(1)
}
