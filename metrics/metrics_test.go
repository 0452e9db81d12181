package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersRecordAndSnapshot(t *testing.T) {
	var c Counters

	c.RecordEvents(3)
	c.RecordEvents(2)
	c.RecordAck()
	c.RecordAck()
	c.RecordAck()

	snap := c.Snapshot(7)
	assert.Equal(t, int64(5), snap.EventsDelivered)
	assert.Equal(t, int64(3), snap.AcksDelivered)
	assert.Equal(t, 7, snap.DeadLetterDepth)
}

func TestCountersZeroValueReady(t *testing.T) {
	var c Counters
	snap := c.Snapshot(0)
	assert.Zero(t, snap.EventsDelivered)
	assert.Zero(t, snap.AcksDelivered)
}

func TestCountersConcurrentRecordEvents(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordEvents(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), c.Snapshot(0).EventsDelivered)
}
