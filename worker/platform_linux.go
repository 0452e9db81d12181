//go:build linux

package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
)

// renamePending tracks one half of a same-batch rename while we wait to
// see whether its counterpart (the inotify IN_MOVED_TO half, surfaced by
// fsnotify as a Create immediately after a Rename) shows up. owners is
// every channel watching the directory at the time the "moved from" half
// was observed, since a shared root must see the eventual Renamed event
// on every one of its watchers.
type renamePending struct {
	owners  []Owner
	kind    message.Kind
	oldPath string
	timer   *time.Timer
}

// linuxPlatform wraps fsnotify's inotify backend, adding the recursive
// subdirectory registration and rename pairing spec.md §4.6 requires for
// Linux. Grounded on original_source/src/worker/linux/side_effect.cpp for
// the SideEffect collection pattern.
type linuxPlatform struct {
	watcher *fsnotify.Watcher
	reg     *WatchRegistry

	mu      sync.Mutex
	pending map[string]*renamePending // keyed by parent dir, since inotify cookies pair within one dir
}

// NewPlatform constructs the Linux Platform implementation.
func NewPlatform() (Platform, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &linuxPlatform{
		watcher: w,
		reg:     NewWatchRegistry(),
		pending: map[string]*renamePending{},
	}, nil
}

func (p *linuxPlatform) HandleAdd(ctx context.Context, out *queue.Queue, channel message.ChannelID, root string, recursive bool) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("worker: %s is not a directory", root)
	}

	se := NewSideEffect(channel, recursive)
	if err := p.watcher.Add(root); err != nil {
		return err
	}
	p.reg.Add(channel, root, recursive)

	if recursive {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || path == root || !d.IsDir() {
				return nil
			}
			se.TrackSubdirectory(path)
			return nil
		})
		delegated := se.EnactIn(p.reg, p.watcher.Add)
		p.forwardDelegated(out, delegated)
	}

	return nil
}

func (p *linuxPlatform) HandleRemove(channel message.ChannelID) error {
	for _, path := range p.reg.Remove(channel) {
		_ = p.watcher.Remove(path)
	}
	return nil
}

func (p *linuxPlatform) Listen(ctx context.Context, out *queue.Queue) error {
	defer p.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return nil
			}
			_ = out.Enqueue(message.NewError(0, err.Error(), false))
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return nil
			}
			p.translate(ev, out)
		}
	}
}

func (p *linuxPlatform) translate(ev fsnotify.Event, out *queue.Queue) {
	owners, known := p.reg.Lookup(filepath.Dir(ev.Name))
	if !known {
		owners, known = p.reg.Lookup(ev.Name)
	}
	if !known {
		return // watch was removed concurrently; drop per spec.md §3 invariant.
	}

	kind := message.KindFile
	if fi, err := os.Lstat(ev.Name); err == nil {
		switch {
		case fi.Mode()&os.ModeSymlink != 0:
			kind = message.KindSymlink
		case fi.IsDir():
			kind = message.KindDirectory
		}
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		if p.matchRenameDestination(ev.Name, kind, out) {
			return
		}
		emitToOwners(out, owners, message.EventCreated, kind, "", ev.Name)
		if kind == message.KindDirectory {
			for _, o := range owners {
				if !o.Recursive {
					continue
				}
				se := NewSideEffect(o.Channel, true)
				se.TrackSubdirectory(ev.Name)
				delegated := se.EnactIn(p.reg, p.watcher.Add)
				p.forwardDelegated(out, delegated)
			}
		}
	case ev.Op.Has(fsnotify.Remove):
		emitToOwners(out, owners, message.EventDeleted, kind, "", ev.Name)
	case ev.Op.Has(fsnotify.Rename):
		p.bufferRenameSource(ev.Name, owners, kind, out)
	case ev.Op.Has(fsnotify.Write):
		emitToOwners(out, owners, message.EventModified, kind, "", ev.Name)
	}
}

// emitToOwners enqueues one independent Event per owning channel, so a
// shared root's watchers each get their own event stream per spec.md §8.
func emitToOwners(out *queue.Queue, owners []Owner, action message.EventAction, kind message.Kind, oldPath, path string) {
	for _, o := range owners {
		_ = out.Enqueue(message.NewEvent(o.Channel, action, kind, oldPath, path))
	}
}

// bufferRenameSource holds the "moved from" half until either a paired
// Create arrives in the same directory shortly after (inotify's cookie
// would normally correlate these; fsnotify does not expose cookies, so a
// short same-batch window stands in for it) or the timer fires and it is
// emitted as an independent Deleted event to every owner.
func (p *linuxPlatform) bufferRenameSource(path string, owners []Owner, kind message.Kind, out *queue.Queue) {
	dir := filepath.Dir(path)

	p.mu.Lock()
	defer p.mu.Unlock()

	rp := &renamePending{owners: owners, kind: kind, oldPath: path}
	rp.timer = time.AfterFunc(50*time.Millisecond, func() {
		p.mu.Lock()
		if p.pending[dir] == rp {
			delete(p.pending, dir)
		}
		p.mu.Unlock()
		emitToOwners(out, owners, message.EventDeleted, kind, "", path)
	})
	p.pending[dir] = rp
}

func (p *linuxPlatform) matchRenameDestination(newPath string, kind message.Kind, out *queue.Queue) bool {
	dir := filepath.Dir(newPath)

	p.mu.Lock()
	rp, ok := p.pending[dir]
	if ok {
		delete(p.pending, dir)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	rp.timer.Stop()
	emitToOwners(out, rp.owners, message.EventRenamed, kind, rp.oldPath, newPath)
	return true
}

// forwardDelegated pushes each delegated Command onto the worker's own
// out-queue as a TagCommand message; the Hub recognizes a Command(add)
// arriving from the worker thread and re-routes it to the polling
// backend (spec.md §4.8), so the worker never talks to polling directly.
func (p *linuxPlatform) forwardDelegated(out *queue.Queue, cmds []message.Command) {
	for _, cmd := range cmds {
		_ = out.Enqueue(message.Message{Tag: message.TagCommand, Command: cmd})
	}
}
