// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Latest values of the hub counters (relay.Metric* keys), shared between
// the event loop that publishes them and the reporter and stats endpoint
// that read them.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry satisfies relay.MetricsSink. The hub replaces every
// counter at once per publication; readers see whole snapshots.
type MetricsRegistry struct {
	mu        sync.RWMutex
	values    map[string]any
	published time.Time
}

// NewMetricsRegistry returns a registry with no counters published yet.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{values: make(map[string]any)}
}

// Set records the current value of one counter.
func (m *MetricsRegistry) Set(key string, value any) {
	m.mu.Lock()
	m.values[key] = value
	m.published = time.Now()
	m.mu.Unlock()
}

// Get returns one counter, e.g. relay.MetricClientsActive.
func (m *MetricsRegistry) Get(key string) (any, bool) {
	m.mu.RLock()
	v, ok := m.values[key]
	m.mu.RUnlock()
	return v, ok
}

// GetSnapshot copies every counter; later publications do not affect it.
func (m *MetricsRegistry) GetSnapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]any, len(m.values))
	for k, v := range m.values {
		snap[k] = v
	}
	return snap
}

// Updated is the time of the last publication, zero before the first.
func (m *MetricsRegistry) Updated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.published
}
