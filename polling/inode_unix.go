//go:build linux || darwin

package polling

import (
	"os"
	"syscall"
)

// statInode extracts the inode number backing fi, used to detect renames
// across scans. Returns false if the underlying stat_t is unavailable.
func statInode(fi os.FileInfo) (uint64, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Ino), true
}
