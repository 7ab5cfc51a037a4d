package memarena

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports an arena's commit/reserved/spare/chunk-count
// accounting as prometheus gauges, one instance per arena, registered
// by the caller (SPEC_FULL.md §3 "monitoring surface for the Arena
// core"). It is a pure data sink: the arena core calls Set* after every
// operation that changes the corresponding quantity; Metrics never
// reads arena state itself.
type Metrics struct {
	Reserved       prometheus.Gauge
	Committed      prometheus.Gauge
	SpareCommitted prometheus.Gauge
	Chunks         prometheus.Gauge
	Allocs         prometheus.Counter
	Frees          prometheus.Counter
	AllocFailures  prometheus.Counter
}

// NewMetrics constructs a Metrics instance under the given namespace
// (e.g. the caller's service name) but does not register it; the
// caller registers it with whatever *prometheus.Registry it uses.
func NewMetrics(namespace string) *Metrics {
	mk := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "arena",
			Name:      name,
			Help:      help,
		})
	}
	mkCounter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "arena",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		Reserved:       mk("reserved_bytes", "Total address space reserved by the arena."),
		Committed:      mk("committed_bytes", "Bytes currently committed to backing store."),
		SpareCommitted: mk("spare_committed_bytes", "Committed bytes parked as spare, not backing any live allocation."),
		Chunks:         mk("chunks", "Number of chunks the arena currently owns."),
		Allocs:         mkCounter("allocs_total", "Number of successful ArenaAlloc calls."),
		Frees:          mkCounter("frees_total", "Number of ArenaFree calls."),
		AllocFailures:  mkCounter("alloc_failures_total", "Number of ArenaAlloc calls that returned an error."),
	}
}

// Collectors returns every collector in m, for bulk registration:
// registry.MustRegister(m.Collectors()...).
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Reserved, m.Committed, m.SpareCommitted, m.Chunks,
		m.Allocs, m.Frees, m.AllocFailures,
	}
}
