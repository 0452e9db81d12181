package watcher_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
	"github.com/dmitrymomot/watchcore/watcher"
)

type fakePlatform struct{}

func (fakePlatform) Listen(ctx context.Context, out *queue.Queue) error {
	<-ctx.Done()
	return nil
}

func (fakePlatform) HandleAdd(ctx context.Context, out *queue.Queue, channel message.ChannelID, root string, recursive bool) error {
	_, err := os.Stat(root)
	return err
}

func (fakePlatform) HandleRemove(channel message.ChannelID) error { return nil }

type capturingSubscriber struct {
	mu     sync.Mutex
	events []watcher.Event
}

func (s *capturingSubscriber) OnEvents(events []message.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *capturingSubscriber) OnError(error) {}

func TestWatcherWatchUnwatchRoundTrip(t *testing.T) {
	t.Setenv("WATCHCORE_POLLING_INTERVAL", "25ms")

	w, err := watcher.New(watcher.WithPlatform(fakePlatform{}))
	require.NoError(t, err)
	defer w.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	dir := t.TempDir()
	sub := &capturingSubscriber{}

	channel, err := w.Watch(ctx, dir, watcher.WatchOptions{Recursive: true}, sub)
	require.NoError(t, err)
	require.NotZero(t, channel)

	require.NoError(t, w.Unwatch(ctx, channel))

	snap := w.Status()
	assert.Zero(t, snap.Channels)
}

func TestWatcherWatchOfNonexistentRootFails(t *testing.T) {
	w, err := watcher.New(watcher.WithPlatform(fakePlatform{}))
	require.NoError(t, err)
	defer w.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err = w.Watch(ctx, "/does/not/exist", watcher.WatchOptions{}, &capturingSubscriber{})
	assert.Error(t, err)
}

func TestDefaultParallelismIsPositive(t *testing.T) {
	assert.Greater(t, watcher.DefaultParallelism(), 0)
}
