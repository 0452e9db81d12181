package worker

import (
	"sync"

	"github.com/dmitrymomot/watchcore/message"
)

// Owner is one channel's registration against a given path: which channel,
// and whether it asked for recursive expansion.
type Owner struct {
	Channel   message.ChannelID
	Recursive bool
}

// WatchRegistry maps a watched path to every channel that owns it and
// back, grounded on spec.md §3's "maps an OS watch descriptor to
// (ChannelID, path, recursive flag), and the inverse mapping." fsnotify
// keys watches by path rather than by an integer descriptor, so the
// registry is keyed on path directly.
//
// A path can be owned by more than one channel at once: spec.md §8
// requires that two Watch calls on the same root produce independent
// event streams, so byPath holds a set of owners per path rather than a
// single one, following the shape polling.Backend already uses for its
// own per-channel root list.
type WatchRegistry struct {
	mu        sync.RWMutex
	byPath    map[string]map[message.ChannelID]bool // path -> channel -> recursive
	byChannel map[message.ChannelID]map[string]struct{}
}

// NewWatchRegistry returns an empty registry.
func NewWatchRegistry() *WatchRegistry {
	return &WatchRegistry{
		byPath:    map[string]map[message.ChannelID]bool{},
		byChannel: map[message.ChannelID]map[string]struct{}{},
	}
}

// Add records that path is now watched on behalf of channel, alongside
// any other channel already watching it.
func (r *WatchRegistry) Add(channel message.ChannelID, path string, recursive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byPath[path] == nil {
		r.byPath[path] = map[message.ChannelID]bool{}
	}
	r.byPath[path][channel] = recursive

	if r.byChannel[channel] == nil {
		r.byChannel[channel] = map[string]struct{}{}
	}
	r.byChannel[channel][path] = struct{}{}
}

// Lookup returns every channel currently watching path, fanning out to
// all owners rather than resolving a single one, so a shared root
// delivers independent events to each of its watchers.
func (r *WatchRegistry) Lookup(path string) ([]Owner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := r.byPath[path]
	if len(owners) == 0 {
		return nil, false
	}
	out := make([]Owner, 0, len(owners))
	for channel, recursive := range owners {
		out = append(out, Owner{Channel: channel, Recursive: recursive})
	}
	return out, true
}

// PathsForChannel returns every path registered on behalf of channel.
func (r *WatchRegistry) PathsForChannel(channel message.ChannelID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := r.byChannel[channel]
	out := make([]string, 0, len(paths))
	for p := range paths {
		out = append(out, p)
	}
	return out
}

// Remove deregisters every path owned by channel and returns only the
// paths that have no remaining owner afterward, so the caller tears down
// the underlying OS watch only once the last channel watching it is
// gone — a path still owned by another channel is left alone.
func (r *WatchRegistry) Remove(channel message.ChannelID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := r.byChannel[channel]
	out := make([]string, 0, len(paths))
	for p := range paths {
		owners := r.byPath[p]
		delete(owners, channel)
		if len(owners) == 0 {
			delete(r.byPath, p)
			out = append(out, p)
		}
	}
	delete(r.byChannel, channel)
	return out
}

// Empty reports whether the registry currently holds no watches at all.
func (r *WatchRegistry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath) == 0
}
