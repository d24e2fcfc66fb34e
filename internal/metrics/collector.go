// Package metrics collects in-memory request statistics per backend.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// BackendMetrics holds aggregated request metrics for one backend.
type BackendMetrics struct {
	Requests  int64
	Failures  int64 // non-2xx responses and transport errors
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// BackendSnapshot provides computed stats from raw metrics.
type BackendSnapshot struct {
	Backend   string
	Requests  int64
	Failures  int64
	AvgTimeMs float64
	MinTimeMs int64
	MaxTimeMs int64
}

// Snapshot is the collected statistics at a point in time.
type Snapshot struct {
	ElapsedSeconds float64
	Backends       []BackendSnapshot
}

// Collector aggregates request statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	backends  map[string]*BackendMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		backends:  make(map[string]*BackendMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for a backend.
// Caller must hold write lock.
func (c *Collector) getOrCreate(backend string) *BackendMetrics {
	m, ok := c.backends[backend]
	if !ok {
		m = &BackendMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.backends[backend] = m
	}
	return m
}

// RecordRequest records one finished request. status is 0 when no response
// was received.
func (c *Collector) RecordRequest(backend string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(backend)
	m.Requests++
	m.TotalTime += duration
	if status < 200 || status > 299 {
		m.Failures++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

func snapshotBackend(name string, m *BackendMetrics) BackendSnapshot {
	return BackendSnapshot{
		Backend:   name,
		Requests:  m.Requests,
		Failures:  m.Failures,
		AvgTimeMs: float64(m.TotalTime.Milliseconds()) / float64(m.Requests),
		MinTimeMs: m.MinTime.Milliseconds(),
		MaxTimeMs: m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot, backends sorted by name.
// Backends without requests are omitted.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{ElapsedSeconds: time.Since(c.startTime).Seconds()}
	for name, m := range c.backends {
		if m.Requests == 0 {
			continue
		}
		snap.Backends = append(snap.Backends, snapshotBackend(name, m))
	}
	sort.Slice(snap.Backends, func(i, j int) bool {
		return snap.Backends[i].Backend < snap.Backends[j].Backend
	})
	return snap
}
