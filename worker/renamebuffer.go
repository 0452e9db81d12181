package worker

import (
	"github.com/dmitrymomot/watchcore/message"
)

// renameBufferEntry is one half of a rename observed so far, keyed by
// inode. Grounded on original_source/src/worker/macos/rename_buffer.h's
// RenameBufferEntry: a snapshot of the event plus an age counter.
type renameBufferEntry struct {
	channel  message.ChannelID
	kind     message.Kind
	oldPath  string
	newPath  string
	haveOld  bool
	haveNew  bool
	age      int
}

// RenameBuffer pairs the two halves of a rename that FSEvents-style
// backends may deliver across adjacent batches. Entries live at most two
// flush cycles; unpaired entries are emitted as separate create/delete
// events. The two-cycle window is deliberate (spec.md §9's design note):
// shorter windows cause spurious create/delete pairs when the two halves
// land in adjacent batches.
type RenameBuffer struct {
	byInode map[uint64]*renameBufferEntry
}

// NewRenameBuffer returns an empty buffer.
func NewRenameBuffer() *RenameBuffer {
	return &RenameBuffer{byInode: map[uint64]*renameBufferEntry{}}
}

// ObserveOld records that inode was last seen at oldPath and has now
// disappeared from there (a deletion half).
func (b *RenameBuffer) ObserveOld(channel message.ChannelID, kind message.Kind, inode uint64, oldPath string) {
	e := b.entry(inode, channel, kind)
	e.oldPath = oldPath
	e.haveOld = true
}

// ObserveNew records that inode has appeared at newPath (a creation
// half).
func (b *RenameBuffer) ObserveNew(channel message.ChannelID, kind message.Kind, inode uint64, newPath string) {
	e := b.entry(inode, channel, kind)
	e.newPath = newPath
	e.haveNew = true
}

func (b *RenameBuffer) entry(inode uint64, channel message.ChannelID, kind message.Kind) *renameBufferEntry {
	e, ok := b.byInode[inode]
	if !ok {
		e = &renameBufferEntry{channel: channel, kind: kind}
		b.byInode[inode] = e
	}
	return e
}

// FlushUnmatched ages every entry by one cycle, emitting a Renamed event
// for any pair that has matched, and independent create/delete events for
// entries that have aged past two cycles without pairing.
func (b *RenameBuffer) FlushUnmatched() []message.Message {
	var out []message.Message

	for inode, e := range b.byInode {
		if e.haveOld && e.haveNew {
			out = append(out, message.NewEvent(e.channel, message.EventRenamed, e.kind, e.oldPath, e.newPath))
			delete(b.byInode, inode)
			continue
		}

		e.age++
		if e.age < 2 {
			continue
		}

		if e.haveOld {
			out = append(out, message.NewEvent(e.channel, message.EventDeleted, e.kind, "", e.oldPath))
		}
		if e.haveNew {
			out = append(out, message.NewEvent(e.channel, message.EventCreated, e.kind, "", e.newPath))
		}
		delete(b.byInode, inode)
	}

	return out
}
