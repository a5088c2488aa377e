package buffer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MailerSuite/Final-sub009/metric"
)

// bufferMetrics holds Prometheus metrics for buffer operations.
type bufferMetrics struct {
	registry    *metric.MetricsRegistry
	prefix      string
	registered  []string
	writes      prometheus.Counter
	reads       prometheus.Counter
	drops       prometheus.Counter
	size        prometheus.Gauge
	utilization prometheus.Gauge
}

// newBufferMetrics creates and registers buffer metrics with the provided registry.
func newBufferMetrics(registry *metric.MetricsRegistry, prefix string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	m := &bufferMetrics{
		registry: registry,
		prefix:   prefix,
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailstream", Subsystem: "buffer", Name: "writes_total",
			ConstLabels: labels, Help: "Total number of buffer write operations",
		}),
		reads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailstream", Subsystem: "buffer", Name: "reads_total",
			ConstLabels: labels, Help: "Total number of items read from the buffer",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mailstream", Subsystem: "buffer", Name: "drops_total",
			ConstLabels: labels, Help: "Total number of items dropped due to overflow",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mailstream", Subsystem: "buffer", Name: "size",
			ConstLabels: labels, Help: "Current number of items in buffer",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mailstream", Subsystem: "buffer", Name: "utilization_ratio",
			ConstLabels: labels, Help: "Buffer fill ratio between 0 and 1",
		}),
	}

	counters := map[string]prometheus.Counter{
		"buffer_writes": m.writes,
		"buffer_reads":  m.reads,
		"buffer_drops":  m.drops,
	}
	gauges := map[string]prometheus.Gauge{
		"buffer_size":        m.size,
		"buffer_utilization": m.utilization,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(prefix, name, c); err != nil {
			m.unregister()
			return nil, err
		}
		m.registered = append(m.registered, name)
	}
	for name, g := range gauges {
		if err := registry.RegisterGauge(prefix, name, g); err != nil {
			m.unregister()
			return nil, err
		}
		m.registered = append(m.registered, name)
	}

	return m, nil
}

// unregister removes the collectors this set registered.
func (m *bufferMetrics) unregister() {
	for _, name := range m.registered {
		m.registry.Unregister(m.prefix, name)
	}
	m.registered = nil
}

// recorder feeds both the always-on Statistics and the optional metrics.
type recorder struct {
	stats    *Statistics
	capacity int

	mu      sync.RWMutex
	metrics *bufferMetrics
}

func newRecorder(registry *metric.MetricsRegistry, prefix string, capacity int) (*recorder, error) {
	r := &recorder{stats: NewStatistics(), capacity: capacity}
	if registry != nil {
		m, err := newBufferMetrics(registry, prefix)
		if err != nil {
			return nil, err
		}
		r.metrics = m
	}
	return r, nil
}

// exported returns the live metrics, or nil once released.
func (r *recorder) exported() *bufferMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}

func (r *recorder) release() {
	r.mu.Lock()
	m := r.metrics
	r.metrics = nil
	r.mu.Unlock()
	if m != nil {
		m.unregister()
	}
}

func (r *recorder) write(size int) {
	r.stats.writes.Add(1)
	if m := r.exported(); m != nil {
		m.writes.Inc()
	}
	r.resize(size)
}

func (r *recorder) read(n, size int) {
	r.stats.reads.Add(int64(n))
	if m := r.exported(); m != nil {
		m.reads.Add(float64(n))
	}
	r.resize(size)
}

func (r *recorder) drop() {
	r.stats.drops.Add(1)
	if m := r.exported(); m != nil {
		m.drops.Inc()
	}
}

func (r *recorder) resize(size int) {
	r.stats.updateSize(int64(size))
	if m := r.exported(); m != nil {
		m.size.Set(float64(size))
		m.utilization.Set(float64(size) / float64(r.capacity))
	}
}
