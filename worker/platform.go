// Package worker implements the OS-native watcher backend: a Thread that
// owns a Platform, grounded on original_source/src/worker/worker_thread.h
// (WorkerThread : public Thread owning a WorkerPlatform) and, for the
// actual OS notification primitive, on github.com/fsnotify/fsnotify —
// the cross-platform library the teacher's own dependency pack does not
// supply, pulled in from the wider example corpus (other_examples'
// fsnotify-fsnotify manifest) to satisfy this contract on Linux, macOS
// and Windows alike.
package worker

import (
	"context"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
)

// Platform is the per-OS contract a Worker drives. Each build-tagged
// platform_*.go file provides one implementation wrapping a shared
// fsnotify.Watcher.
type Platform interface {
	// Listen blocks translating OS events into Event/Error/Command
	// messages pushed onto out, returning when ctx is cancelled or a
	// thread-fatal condition occurs.
	Listen(ctx context.Context, out *queue.Queue) error

	// HandleAdd registers watches for root under channel, expanding
	// recursively if requested. It may push Command(add) messages onto
	// out addressed to the polling backend for paths it cannot watch
	// natively (e.g. a symlink escape on Linux).
	HandleAdd(ctx context.Context, out *queue.Queue, channel message.ChannelID, root string, recursive bool) error

	// HandleRemove deregisters every watch owned by channel.
	HandleRemove(channel message.ChannelID) error
}
