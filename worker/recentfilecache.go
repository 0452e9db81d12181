package worker

import "os"

// cachedStat is the last-known state of one path: its stat snapshot,
// inode, and a generation counter bumped on every observed change, used
// to disambiguate FSEvents-style flags that may coalesce multiple
// actions into a single notification.
type cachedStat struct {
	size       int64
	mtime      int64
	inode      uint64
	generation uint64
}

// RecentFileCache maps path -> cachedStat, grounded on spec.md §3's
// "Recent file cache (macOS-style backends)."
type RecentFileCache struct {
	entries map[string]cachedStat
}

// NewRecentFileCache returns an empty cache.
func NewRecentFileCache() *RecentFileCache {
	return &RecentFileCache{entries: map[string]cachedStat{}}
}

// Observe updates the cache for path from fi (nil if the path no longer
// exists) and returns the previous entry plus whether one existed, so
// callers can diff old vs. new state to classify the event.
func (c *RecentFileCache) Observe(path string, fi os.FileInfo, inode uint64) (cachedStat, bool) {
	prev, existed := c.entries[path]

	if fi == nil {
		delete(c.entries, path)
		return prev, existed
	}

	c.entries[path] = cachedStat{
		size:       fi.Size(),
		mtime:      fi.ModTime().UnixNano(),
		inode:      inode,
		generation: prev.generation + 1,
	}
	return prev, existed
}

// Forget removes path from the cache (e.g. on an unambiguous delete).
func (c *RecentFileCache) Forget(path string) {
	delete(c.entries, path)
}
