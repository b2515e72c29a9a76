// control/reporter.go
// Author: momentics <momentics@gmail.com>
//
// Periodic log line summarizing published metrics and probe values.

package control

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Reporter logs a snapshot of metrics and probes at a fixed interval.
type Reporter struct {
	metrics  *MetricsRegistry
	probes   *DebugProbes
	log      *slog.Logger
	interval time.Duration
}

// NewReporter creates a reporter; probes may be nil.
func NewReporter(metrics *MetricsRegistry, probes *DebugProbes, log *slog.Logger, interval time.Duration) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{metrics: metrics, probes: probes, log: log, interval: interval}
}

// Run reports until ctx is cancelled. A non-positive interval returns at once.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Report()
		}
	}
}

// Report emits one snapshot line.
func (r *Reporter) Report() {
	r.log.Info("relay stats", r.attrs()...)
}

func (r *Reporter) attrs() []any {
	snap := r.metrics.GetSnapshot()
	if r.probes != nil {
		for k, v := range r.probes.DumpState() {
			snap[k] = v
		}
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, snap[k]))
	}
	return attrs
}
