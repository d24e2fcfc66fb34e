package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorAggregatesPerBackend(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("api", 200, 10*time.Millisecond)
	c.RecordRequest("api", 404, 30*time.Millisecond)
	c.RecordRequest("ai", 0, 5*time.Millisecond)

	snap := c.Snapshot()
	require.Len(t, snap.Backends, 2)

	ai, api := snap.Backends[0], snap.Backends[1]
	assert.Equal(t, "ai", ai.Backend)
	assert.Equal(t, int64(1), ai.Requests)
	assert.Equal(t, int64(1), ai.Failures)

	assert.Equal(t, "api", api.Backend)
	assert.Equal(t, int64(2), api.Requests)
	assert.Equal(t, int64(1), api.Failures)
	assert.Equal(t, int64(10), api.MinTimeMs)
	assert.Equal(t, int64(30), api.MaxTimeMs)
	assert.InDelta(t, 20.0, api.AvgTimeMs, 0.001)
}

func TestCollectorEmpty(t *testing.T) {
	snap := NewCollector().Snapshot()
	assert.Empty(t, snap.Backends)
	assert.GreaterOrEqual(t, snap.ElapsedSeconds, 0.0)
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordRequest("api", 200, time.Millisecond)
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Backends, 1)
	assert.Equal(t, int64(50), snap.Backends[0].Requests)
	assert.Zero(t, snap.Backends[0].Failures)
}
