//go:build windows

package polling

import "os"

// statInode is a no-op on Windows: os.FileInfo carries no inode-like
// identifier without an extra OpenFile+GetFileInformationByHandle round
// trip, which the polling backend's diff loop cannot afford per scan.
// Rename detection on Windows degrades to independent create/delete
// pairs, matching spec.md's "unpaired entries are emitted as separate
// create/delete events" fallback.
func statInode(fi os.FileInfo) (uint64, bool) {
	return 0, false
}
