package polling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/message"
)

func TestDiffDetectsCreateModifyDelete(t *testing.T) {
	channel := message.ChannelID(1)

	prev := snapshot{
		"/a": {size: 10, mtime: 100, kind: message.KindFile},
		"/b": {size: 20, mtime: 200, kind: message.KindFile},
	}
	cur := snapshot{
		"/a": {size: 10, mtime: 150, kind: message.KindFile}, // modified (mtime changed)
		"/c": {size: 5, mtime: 300, kind: message.KindFile},  // created
		// "/b" missing -> deleted
	}

	events := diff(channel, prev, cur)

	var created, modified, deleted int
	for _, m := range events {
		ev, _ := m.AsEvent()
		switch ev.Action {
		case message.EventCreated:
			created++
			assert.Equal(t, "/c", ev.Path)
		case message.EventModified:
			modified++
			assert.Equal(t, "/a", ev.Path)
		case message.EventDeleted:
			deleted++
			assert.Equal(t, "/b", ev.Path)
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, modified)
	assert.Equal(t, 1, deleted)
}

func TestDiffDetectsRenameByMatchingInode(t *testing.T) {
	channel := message.ChannelID(1)

	prev := snapshot{
		"/old": {size: 10, mtime: 100, kind: message.KindFile, inode: 42},
	}
	cur := snapshot{
		"/new": {size: 10, mtime: 100, kind: message.KindFile, inode: 42},
	}

	events := diff(channel, prev, cur)
	require.Len(t, events, 1)
	ev, _ := events[0].AsEvent()
	assert.Equal(t, message.EventRenamed, ev.Action)
	assert.Equal(t, "/old", ev.OldPath)
	assert.Equal(t, "/new", ev.Path)
}

func TestTakeWalksRecursively(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("x"), 0o644))

	snap, err := take(dir, true)
	require.NoError(t, err)

	assert.Contains(t, snap, filepath.Join(dir, "sub"))
	assert.Contains(t, snap, filepath.Join(dir, "sub", "f.txt"))
}

func TestTakeNonRecursiveOnlyCoversImmediateChildren(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("x"), 0o644))

	snap, err := take(dir, false)
	require.NoError(t, err)

	assert.NotContains(t, snap, filepath.Join(dir, "sub", "f.txt"))
	assert.Contains(t, snap, filepath.Join(dir, "sub"))
}

func TestTakeOfNonexistentRootFails(t *testing.T) {
	_, err := take(filepath.Join(t.TempDir(), "does-not-exist"), false)
	assert.Error(t, err)
}
