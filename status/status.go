// Package status exposes a read-only snapshot of queue depths, channel
// counts, and thread states, mirroring the teacher's WorkerStats /
// Healthcheck observability surface.
package status

import (
	"context"
	"log/slog"
	"time"
)

// ThreadState mirrors thread.State without importing it, to avoid a
// dependency cycle (thread imports status for per-thread reporting).
type ThreadState string

const (
	ThreadStopped  ThreadState = "stopped"
	ThreadStarting ThreadState = "starting"
	ThreadRunning  ThreadState = "running"
	ThreadStopping ThreadState = "stopping"
)

// ThreadSnapshot is one backend thread's observable state.
type ThreadSnapshot struct {
	Name        string
	State       ThreadState
	InQueueLen  int
	OutQueueLen int
	DeadLetters int
}

// Snapshot is the aggregate status of a Hub at one instant.
type Snapshot struct {
	Channels        int
	PendingAcks     int
	Threads         []ThreadSnapshot
	EventsDelivered int64
	AcksDelivered   int64
	DeadLetterDepth int
}

// Source is implemented by hub.Hub. Defined here, not in hub, so status
// has no dependency on hub and can be imported by either side.
type Source interface {
	Status() Snapshot
}

// Watch periodically logs snapshots from src until ctx is cancelled,
// analogous to the teacher's Worker.Healthcheck being polled by an
// external liveness prober.
func Watch(ctx context.Context, src Source, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := src.Status()
			logger.InfoContext(ctx, "watcher status",
				slog.Int("channels", snap.Channels),
				slog.Int("pending_acks", snap.PendingAcks),
				slog.Int64("events_delivered", snap.EventsDelivered),
				slog.Int64("acks_delivered", snap.AcksDelivered),
				slog.Int("dead_letter_depth", snap.DeadLetterDepth))
		}
	}
}
