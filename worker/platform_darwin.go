//go:build darwin

package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
)

// darwinPlatform wraps fsnotify's kqueue backend with the FSEvents-style
// reconciliation spec.md §4.6 describes for macOS: a RecentFileCache to
// diff observed vs. remembered state, and an inode-keyed RenameBuffer to
// pair rename halves across flush cycles.
type darwinPlatform struct {
	watcher *fsnotify.Watcher
	reg     *WatchRegistry

	mu     sync.Mutex
	cache  *RecentFileCache
	rename *RenameBuffer
}

// NewPlatform constructs the macOS Platform implementation.
func NewPlatform() (Platform, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &darwinPlatform{
		watcher: w,
		reg:     NewWatchRegistry(),
		cache:   NewRecentFileCache(),
		rename:  NewRenameBuffer(),
	}, nil
}

func (p *darwinPlatform) HandleAdd(ctx context.Context, out *queue.Queue, channel message.ChannelID, root string, recursive bool) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("worker: %s is not a directory", root)
	}

	if err := p.watcher.Add(root); err != nil {
		return err
	}
	p.reg.Add(channel, root, recursive)
	p.primeCache(root)

	if recursive {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || path == root || !d.IsDir() {
				return nil
			}
			if addErr := p.watcher.Add(path); addErr == nil {
				p.reg.Add(channel, path, recursive)
				p.primeCache(path)
			}
			return nil
		})
	}

	return nil
}

func (p *darwinPlatform) primeCache(path string) {
	fi, err := os.Lstat(path)
	if err != nil {
		return
	}
	p.cache.Observe(path, fi, inodeOf(fi))
}

func (p *darwinPlatform) HandleRemove(channel message.ChannelID) error {
	for _, path := range p.reg.Remove(channel) {
		_ = p.watcher.Remove(path)
		p.cache.Forget(path)
	}
	return nil
}

func (p *darwinPlatform) Listen(ctx context.Context, out *queue.Queue) error {
	defer p.watcher.Close()

	flush := time.NewTicker(100 * time.Millisecond)
	defer flush.Stop()

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
		case <-flush.C:
			p.mu.Lock()
			events := p.rename.FlushUnmatched()
			p.mu.Unlock()
			if len(events) > 0 {
				_ = out.EnqueueAll(events)
			}
		}
	}
}

func (p *darwinPlatform) translate(ev fsnotify.Event, out *queue.Queue) {
	owners, known := p.reg.Lookup(filepath.Dir(ev.Name))
	if !known {
		owners, known = p.reg.Lookup(ev.Name)
	}
	if !known {
		return
	}

	fi, statErr := os.Lstat(ev.Name)
	kind := message.KindFile
	var inode uint64
	if statErr == nil {
		inode = inodeOf(fi)
		switch {
		case fi.Mode()&os.ModeSymlink != 0:
			kind = message.KindSymlink
		case fi.IsDir():
			kind = message.KindDirectory
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, existed := p.cache.Observe(ev.Name, fi, inode)

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		if prev.inode != 0 {
			for _, o := range owners {
				p.rename.ObserveOld(o.Channel, kind, prev.inode, ev.Name)
			}
		} else {
			emitToOwners(out, owners, message.EventDeleted, kind, "", ev.Name)
		}
	case ev.Op.Has(fsnotify.Create):
		if inode != 0 {
			// Might be the destination half of a pending rename; let the
			// RenameBuffer's flush cycle decide whether to pair it or
			// fall back to an independent Created event.
			for _, o := range owners {
				p.rename.ObserveNew(o.Channel, kind, inode, ev.Name)
			}
		} else {
			emitToOwners(out, owners, message.EventCreated, kind, "", ev.Name)
		}
		if kind == message.KindDirectory {
			for _, o := range owners {
				if !o.Recursive {
					continue
				}
				if err := p.watcher.Add(ev.Name); err == nil {
					p.reg.Add(o.Channel, ev.Name, o.Recursive)
				}
			}
		}
	case ev.Op.Has(fsnotify.Write):
		if existed {
			emitToOwners(out, owners, message.EventModified, kind, "", ev.Name)
		}
	}
}

// emitToOwners enqueues one independent Event per owning channel, so a
// shared root's watchers each get their own event stream per spec.md §8.
func emitToOwners(out *queue.Queue, owners []Owner, action message.EventAction, kind message.Kind, oldPath, path string) {
	for _, o := range owners {
		_ = out.Enqueue(message.NewEvent(o.Channel, action, kind, oldPath, path))
	}
}

func inodeOf(fi os.FileInfo) uint64 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(st.Ino)
}
