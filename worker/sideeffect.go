package worker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/watchcore/message"
)

// SideEffect accumulates newly-discovered subdirectories that must be
// registered once the current event batch finishes processing, and the
// paths that could not be reached at all (permission denied, symlink
// chains) and must instead be delegated to the polling backend.
//
// Grounded on original_source/src/worker/linux/side_effect.{h,cpp}:
// track_subdirectory()/enact_in() collect work during inotify event
// translation so watch registration never happens from inside the
// inotify read loop itself.
type SideEffect struct {
	channel    message.ChannelID
	recursive  bool
	subdirs    []string
	delegated  []string
}

// NewSideEffect starts a collector for one channel's batch.
func NewSideEffect(channel message.ChannelID, recursive bool) *SideEffect {
	return &SideEffect{channel: channel, recursive: recursive}
}

// TrackSubdirectory records a newly-created directory discovered while
// translating an inotify-style batch. If it cannot be statted (symlink
// escape, permission denied), it is queued for polling-backend delegation
// instead of native registration.
func (s *SideEffect) TrackSubdirectory(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		s.delegated = append(s.delegated, path)
		return
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(path)
		if err != nil || !withinTree(target, path) {
			s.delegated = append(s.delegated, path)
			return
		}
	}
	s.subdirs = append(s.subdirs, path)
}

// withinTree is a conservative check used only to decide whether a
// symlink's target is worth a native recursive watch (true) or should be
// escaped to polling (false): a symlink pointing outside its own parent
// directory is treated as an escape, matching spec.md §4.6's "symlink
// escapes on Linux" language.
func withinTree(target, link string) bool {
	parent := filepath.Dir(link)
	rel, err := filepath.Rel(parent, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Subdirs returns the subdirectories to register natively.
func (s *SideEffect) Subdirs() []string { return s.subdirs }

// Delegated returns the paths that must be pushed to the polling backend
// as Command(add) messages instead.
func (s *SideEffect) Delegated() []string { return s.delegated }

// EnactIn registers every tracked subdirectory against reg and watcher,
// and returns Command(add) messages for every delegated path, addressed
// to the polling backend, per spec.md §4.6/§4.8.
func (s *SideEffect) EnactIn(reg *WatchRegistry, addNative func(path string) error) []message.Command {
	for _, dir := range s.subdirs {
		if err := addNative(dir); err != nil {
			s.delegated = append(s.delegated, dir)
			continue
		}
		reg.Add(s.channel, dir, s.recursive)
	}

	out := make([]message.Command, 0, len(s.delegated))
	for _, path := range s.delegated {
		out = append(out, message.Command{
			Action:    message.ActionAdd,
			ChannelID: s.channel,
			RootPath:  path,
			Recursive: s.recursive,
		})
	}
	return out
}
