//go:build windows

package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
)

// windowsPlatform wraps fsnotify's ReadDirectoryChangesW backend.
// ReadDirectoryChangesW itself delivers old/new name pairs together, so
// unlike Linux/macOS no cross-batch buffering is required: a Rename
// event immediately followed by the next Create in the same read is
// treated as one pair within a short correlation window.
type windowsPlatform struct {
	watcher *fsnotify.Watcher
	reg     *WatchRegistry

	lastRenameFrom string
	lastRenameAt   time.Time
}

// NewPlatform constructs the Windows Platform implementation.
func NewPlatform() (Platform, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &windowsPlatform{
		watcher: w,
		reg:     NewWatchRegistry(),
	}, nil
}

func (p *windowsPlatform) HandleAdd(ctx context.Context, out *queue.Queue, channel message.ChannelID, root string, recursive bool) error {
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

	if recursive {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || path == root || !d.IsDir() {
				return nil
			}
			if addErr := p.watcher.Add(path); addErr == nil {
				p.reg.Add(channel, path, recursive)
			}
			return nil
		})
	}

	return nil
}

func (p *windowsPlatform) HandleRemove(channel message.ChannelID) error {
	for _, path := range p.reg.Remove(channel) {
		_ = p.watcher.Remove(path)
	}
	return nil
}

func (p *windowsPlatform) Listen(ctx context.Context, out *queue.Queue) error {
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

func (p *windowsPlatform) translate(ev fsnotify.Event, out *queue.Queue) {
	owners, known := p.reg.Lookup(filepath.Dir(ev.Name))
	if !known {
		owners, known = p.reg.Lookup(ev.Name)
	}
	if !known {
		return
	}

	kind := message.KindFile
	if fi, err := os.Lstat(ev.Name); err == nil && fi.IsDir() {
		kind = message.KindDirectory
	}

	switch {
	case ev.Op.Has(fsnotify.Rename):
		p.lastRenameFrom = ev.Name
		p.lastRenameAt = time.Now()
	case ev.Op.Has(fsnotify.Create):
		if p.lastRenameFrom != "" && time.Since(p.lastRenameAt) < 10*time.Millisecond {
			emitToOwners(out, owners, message.EventRenamed, kind, p.lastRenameFrom, ev.Name)
			p.lastRenameFrom = ""
			return
		}
		emitToOwners(out, owners, message.EventCreated, kind, "", ev.Name)
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
	case ev.Op.Has(fsnotify.Remove):
		emitToOwners(out, owners, message.EventDeleted, kind, "", ev.Name)
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
