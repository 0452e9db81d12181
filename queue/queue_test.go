package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/message"
	"github.com/dmitrymomot/watchcore/queue"
)

func TestEnqueueAcceptAllFIFO(t *testing.T) {
	q := queue.New()

	m1 := message.NewCommand(1, message.ActionAdd, 1, "/a", false)
	m2 := message.NewCommand(2, message.ActionAdd, 1, "/b", false)

	require.NoError(t, q.Enqueue(m1))
	require.NoError(t, q.Enqueue(m2))

	batch := q.AcceptAll()
	require.Len(t, batch, 2)
	cmd0, _ := batch[0].AsCommand()
	cmd1, _ := batch[1].AsCommand()
	assert.EqualValues(t, 1, cmd0.ID, "expected FIFO order")
	assert.EqualValues(t, 2, cmd1.ID, "expected FIFO order")
}

func TestAcceptAllResetsBuffer(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Enqueue(message.NewCommand(1, message.ActionAdd, 1, "/a", false)))

	first := q.AcceptAll()
	require.Len(t, first, 1)

	second := q.AcceptAll()
	assert.Nil(t, second, "expected nil on second accept with nothing enqueued")
}

func TestEnqueueAllIsAtomicRelativeToAcceptAll(t *testing.T) {
	q := queue.New()
	batch := []message.Message{
		message.NewCommand(1, message.ActionAdd, 1, "/a", false),
		message.NewCommand(2, message.ActionAdd, 1, "/b", false),
		message.NewCommand(3, message.ActionAdd, 1, "/c", false),
	}
	require.NoError(t, q.EnqueueAll(batch))

	got := q.AcceptAll()
	assert.Len(t, got, 3, "expected all messages in one batch")
}

func TestCloseRejectsFurtherEnqueues(t *testing.T) {
	q := queue.New()
	q.Close()

	err := q.Enqueue(message.NewCommand(1, message.ActionAdd, 1, "/a", false))
	assert.ErrorIs(t, err, queue.ErrClosed)
	assert.True(t, q.Closed())
}

func TestNotifySignalsOnEnqueue(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Enqueue(message.NewCommand(1, message.ActionAdd, 1, "/a", false)))

	select {
	case <-q.Notify():
	default:
		t.Fatal("expected a pending notification after Enqueue")
	}
}

func TestCapacityBoundedQueueRejectsOverflow(t *testing.T) {
	q := queue.New(2)

	require.NoError(t, q.Enqueue(message.NewCommand(1, message.ActionAdd, 1, "/a", false)))
	require.NoError(t, q.Enqueue(message.NewCommand(2, message.ActionAdd, 1, "/b", false)))

	err := q.Enqueue(message.NewCommand(3, message.ActionAdd, 1, "/c", false))
	assert.ErrorIs(t, err, queue.ErrFull)

	assert.Len(t, q.AcceptAll(), 2, "the two accepted messages should remain queued")
}

func TestCapacityBoundedQueueAcceptsAfterDrain(t *testing.T) {
	q := queue.New(1)

	require.NoError(t, q.Enqueue(message.NewCommand(1, message.ActionAdd, 1, "/a", false)))
	assert.ErrorIs(t, q.Enqueue(message.NewCommand(2, message.ActionAdd, 1, "/b", false)), queue.ErrFull)

	q.AcceptAll()

	require.NoError(t, q.Enqueue(message.NewCommand(3, message.ActionAdd, 1, "/c", false)))
}
