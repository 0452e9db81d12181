package polling

import (
	"os"
	"path/filepath"

	"github.com/dmitrymomot/watchcore/message"
)

// entry is one path's last-observed state, matching spec.md §3's
// "(path -> {size, mtime, kind, inode})" snapshot shape.
type entry struct {
	size  int64
	mtime int64
	kind  message.Kind
	inode uint64
}

// snapshot is the set of entries observed for one watched root.
type snapshot map[string]entry

// take walks root (recursively if requested) and returns the current
// snapshot. Non-existent roots yield an empty snapshot and an error.
func take(root string, recursive bool) (snapshot, error) {
	snap := snapshot{}

	info, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		snap[root] = entryFromInfo(info)
		return snap, nil
	}

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		snap[root] = entryFromInfo(info)
		for _, de := range entries {
			p := filepath.Join(root, de.Name())
			fi, err := de.Info()
			if err != nil {
				continue
			}
			snap[p] = entryFromInfo(fi)
		}
		return snap, nil
	}

	snap[root] = entryFromInfo(info)
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // transient per-path error; skip and keep scanning
		}
		if path == root {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		snap[path] = entryFromInfo(fi)
		return nil
	})

	return snap, nil
}

func entryFromInfo(fi os.FileInfo) entry {
	kind := message.KindFile
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		kind = message.KindSymlink
	case fi.IsDir():
		kind = message.KindDirectory
	case !fi.Mode().IsRegular():
		kind = message.KindUnknown
	}

	var inode uint64
	if ino, ok := statInode(fi); ok {
		inode = ino
	}

	return entry{
		size:  fi.Size(),
		mtime: fi.ModTime().UnixNano(),
		kind:  kind,
		inode: inode,
	}
}

// diff compares a previous and current snapshot of the same root,
// producing FilesystemEvent payloads per spec.md §4.7:
//
//	new path           -> Created
//	missing path        -> Deleted
//	same path, size/mtime differ -> Modified
//	matched inode across distinct paths in the same scan -> Renamed
func diff(channel message.ChannelID, prev, cur snapshot) []message.Message {
	var out []message.Message

	// Build inode -> path indexes to detect renames before falling back
	// to independent create/delete pairs.
	prevByInode := map[uint64]string{}
	for p, e := range prev {
		if e.inode != 0 {
			prevByInode[e.inode] = p
		}
	}
	curByInode := map[uint64]string{}
	for p, e := range cur {
		if e.inode != 0 {
			curByInode[e.inode] = p
		}
	}

	handledAsRename := map[string]bool{}

	for p, e := range cur {
		if _, existed := prev[p]; existed {
			continue
		}
		// New path. Check whether it's really the destination half of a
		// rename (same inode existed elsewhere before).
		if oldPath, ok := prevByInode[e.inode]; ok && e.inode != 0 && oldPath != p {
			if _, stillThere := cur[oldPath]; !stillThere {
				out = append(out, message.NewEvent(channel, message.EventRenamed, e.kind, oldPath, p))
				handledAsRename[oldPath] = true
				handledAsRename[p] = true
				continue
			}
		}
		out = append(out, message.NewEvent(channel, message.EventCreated, e.kind, "", p))
	}

	for p, e := range prev {
		if handledAsRename[p] {
			continue
		}
		if _, stillThere := cur[p]; stillThere {
			continue
		}
		if newPath, ok := curByInode[e.inode]; ok && e.inode != 0 && newPath != p {
			continue // already emitted as the Renamed event above
		}
		out = append(out, message.NewEvent(channel, message.EventDeleted, e.kind, "", p))
	}

	for p, e := range cur {
		old, existed := prev[p]
		if !existed || handledAsRename[p] {
			continue
		}
		if old.size != e.size || old.mtime != e.mtime {
			out = append(out, message.NewEvent(channel, message.EventModified, e.kind, "", p))
		}
	}

	return out
}
