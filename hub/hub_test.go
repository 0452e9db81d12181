package hub_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/corelog"
	"github.com/dmitrymomot/watchcore/hub"
	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
)

// fakePlatform is a minimal worker.Platform used to drive the Hub's
// watch/unwatch flow without a real OS notification backend.
type fakePlatform struct {
	mu      sync.Mutex
	added   map[message.ChannelID]string
	removed map[message.ChannelID]bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{added: map[message.ChannelID]string{}, removed: map[message.ChannelID]bool{}}
}

func (p *fakePlatform) Listen(ctx context.Context, out *queue.Queue) error {
	<-ctx.Done()
	return nil
}

func (p *fakePlatform) HandleAdd(ctx context.Context, out *queue.Queue, channel message.ChannelID, root string, recursive bool) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	p.mu.Lock()
	p.added[channel] = root
	p.mu.Unlock()
	return nil
}

func (p *fakePlatform) HandleRemove(channel message.ChannelID) error {
	p.mu.Lock()
	p.removed[channel] = true
	p.mu.Unlock()
	return nil
}

type recordingSubscriber struct {
	mu     sync.Mutex
	events [][]message.Event
	errs   []error
}

func (s *recordingSubscriber) OnEvents(events []message.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events)
}

func (s *recordingSubscriber) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func TestWatchThenUnwatchRoundTrips(t *testing.T) {
	dir := t.TempDir()
	h := hub.New(newFakePlatform(), corelog.New(), hub.Config{PollingInterval: int64(50 * time.Millisecond)})
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	type ackResult struct {
		err     error
		channel message.ChannelID
	}
	ackCh := make(chan ackResult, 1)

	sub := &recordingSubscriber{}
	_, err := h.Watch(ctx, dir, hub.WatchOptions{Recursive: true}, func(err error, channel message.ChannelID) {
		ackCh <- ackResult{err, channel}
	}, sub)
	require.NoError(t, err)

	var result ackResult
	select {
	case result = <-ackCh:
	case <-ctx.Done():
		t.Fatal("timed out waiting for watch ack")
	}
	require.NoError(t, result.err)
	require.NotZero(t, result.channel)

	unwatchDone := make(chan error, 1)
	h.Unwatch(ctx, result.channel, func(err error) { unwatchDone <- err })

	select {
	case err := <-unwatchDone:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for unwatch ack")
	}

	snap := h.Status()
	assert.Zero(t, snap.Channels)
	assert.Zero(t, snap.PendingAcks)
}

func TestWatchOfNonexistentRootFailsWithoutRegisteringChannel(t *testing.T) {
	h := hub.New(newFakePlatform(), corelog.New(), hub.Config{PollingInterval: int64(time.Second)})
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ackCh := make(chan error, 1)
	sub := &recordingSubscriber{}
	_, err := h.Watch(ctx, "/does/not/exist/at/all", hub.WatchOptions{}, func(err error, _ message.ChannelID) {
		ackCh <- err
	}, sub)
	require.NoError(t, err, "Watch itself should not fail synchronously")

	select {
	case err := <-ackCh:
		assert.Error(t, err, "expected the ack to report an error for a nonexistent root")
	case <-ctx.Done():
		t.Fatal("timed out waiting for ack")
	}

	snap := h.Status()
	assert.Zero(t, snap.Channels, "expected no channel to remain registered after a failed watch")
}

func TestUnwatchOfUnknownChannelAcksWithoutError(t *testing.T) {
	h := hub.New(newFakePlatform(), corelog.New(), hub.Config{PollingInterval: int64(time.Second)})
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	h.Unwatch(ctx, message.ChannelID(999), func(err error) { done <- err })

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("timed out")
	}
}
