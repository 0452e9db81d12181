package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/watchcore/message"
)

func TestWatchRegistryAddLookupRemove(t *testing.T) {
	reg := NewWatchRegistry()
	channel := message.ChannelID(1)

	reg.Add(channel, "/a", true)
	reg.Add(channel, "/a/sub", true)

	owners, ok := reg.Lookup("/a/sub")
	assert.True(t, ok)
	assert.ElementsMatch(t, []Owner{{Channel: channel, Recursive: true}}, owners)

	paths := reg.PathsForChannel(channel)
	assert.ElementsMatch(t, []string{"/a", "/a/sub"}, paths)

	removed := reg.Remove(channel)
	assert.ElementsMatch(t, []string{"/a", "/a/sub"}, removed)

	_, ok = reg.Lookup("/a")
	assert.False(t, ok)
	assert.True(t, reg.Empty())
}

func TestWatchRegistryLookupOfUnknownPathFails(t *testing.T) {
	reg := NewWatchRegistry()
	_, ok := reg.Lookup("/nowhere")
	assert.False(t, ok)
}

func TestWatchRegistryTracksMultipleChannelsIndependently(t *testing.T) {
	reg := NewWatchRegistry()
	reg.Add(message.ChannelID(1), "/a", false)
	reg.Add(message.ChannelID(2), "/b", false)

	reg.Remove(message.ChannelID(1))

	assert.False(t, reg.Empty())
	_, ok := reg.Lookup("/b")
	assert.True(t, ok)
}

// TestWatchRegistrySharedRootFansOutToBothChannels covers spec.md §8's
// boundary case: two independent Watch calls on the same root must each
// keep their own registration and event stream, and neither channel's
// Remove may tear down the other's watch.
func TestWatchRegistrySharedRootFansOutToBothChannels(t *testing.T) {
	reg := NewWatchRegistry()
	first := message.ChannelID(1)
	second := message.ChannelID(2)

	reg.Add(first, "/shared", true)
	reg.Add(second, "/shared", false)

	owners, ok := reg.Lookup("/shared")
	assert.True(t, ok)
	assert.ElementsMatch(t, []Owner{
		{Channel: first, Recursive: true},
		{Channel: second, Recursive: false},
	}, owners)

	// Removing the first channel must not affect the second: the path is
	// still owned, so no OS-level unwatch should be signalled for it.
	unwatch := reg.Remove(first)
	assert.Empty(t, unwatch)

	owners, ok = reg.Lookup("/shared")
	assert.True(t, ok)
	assert.ElementsMatch(t, []Owner{{Channel: second, Recursive: false}}, owners)

	// Only once the last owner goes does the path come back as safe to
	// unwatch at the OS level.
	unwatch = reg.Remove(second)
	assert.Equal(t, []string{"/shared"}, unwatch)
	assert.True(t, reg.Empty())
}
