// File: relay/options.go
// Package relay defines functional options for the Hub.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package relay

import (
	"log/slog"
	"time"
)

// MetricsSink receives published hub counters. control.MetricsRegistry
// satisfies it; implementations must be safe for use from another goroutine
// reading the values.
type MetricsSink interface {
	Set(key string, value any)
}

// Option customizes Hub initialization.
type Option func(*Hub)

// WithLogger sets the structured logger used for connection lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics publishes counters to sink every Config.StatsInterval and at shutdown.
func WithMetrics(sink MetricsSink) Option {
	return func(h *Hub) {
		h.metrics = sink
	}
}

// WithSleep replaces the idle pause implementation.
func WithSleep(fn func(d time.Duration)) Option {
	return func(h *Hub) {
		if fn != nil {
			h.sleep = fn
		}
	}
}
