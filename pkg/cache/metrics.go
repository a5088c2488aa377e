package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MailerSuite/Final-sub009/metric"
)

// cacheMetrics holds Prometheus metrics for cache operations.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCounter(prefix, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "mailstream",
		Subsystem:   "cache",
		Name:        name,
		ConstLabels: prometheus.Labels{"component": prefix},
		Help:        help,
	})
}

// newCacheMetrics creates and registers cache metrics with the provided registry.
func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		hits:      newCounter(prefix, "hits_total", "Total number of cache hits"),
		misses:    newCounter(prefix, "misses_total", "Total number of cache misses"),
		sets:      newCounter(prefix, "sets_total", "Total number of cache set operations"),
		deletes:   newCounter(prefix, "deletes_total", "Total number of cache delete operations"),
		evictions: newCounter(prefix, "evictions_total", "Total number of expired entries evicted on read"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mailstream",
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of entries in cache",
		}),
	}

	counters := map[string]prometheus.Counter{
		"cache_hits":      m.hits,
		"cache_misses":    m.misses,
		"cache_sets":      m.sets,
		"cache_deletes":   m.deletes,
		"cache_evictions": m.evictions,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(prefix, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(prefix, "cache_size", m.size); err != nil {
		return nil, err
	}

	return m, nil
}

// recorder feeds both the always-on Statistics and the optional metrics.
type recorder struct {
	stats   *Statistics
	metrics *cacheMetrics
}

func newRecorder(registry *metric.MetricsRegistry, prefix string) (*recorder, error) {
	r := &recorder{stats: NewStatistics()}
	if registry != nil {
		m, err := newCacheMetrics(registry, prefix)
		if err != nil {
			return nil, err
		}
		r.metrics = m
	}
	return r, nil
}

func (r *recorder) hit() {
	r.stats.hits.Add(1)
	if r.metrics != nil {
		r.metrics.hits.Inc()
	}
}

func (r *recorder) miss() {
	r.stats.misses.Add(1)
	if r.metrics != nil {
		r.metrics.misses.Inc()
	}
}

func (r *recorder) set(size int) {
	r.stats.sets.Add(1)
	if r.metrics != nil {
		r.metrics.sets.Inc()
	}
	r.resize(size)
}

func (r *recorder) delete(size int) {
	r.stats.deletes.Add(1)
	if r.metrics != nil {
		r.metrics.deletes.Inc()
	}
	r.resize(size)
}

func (r *recorder) eviction(size int) {
	r.stats.evictions.Add(1)
	if r.metrics != nil {
		r.metrics.evictions.Inc()
	}
	r.resize(size)
}

func (r *recorder) resize(size int) {
	r.stats.currentSize.Store(int64(size))
	if r.metrics != nil {
		r.metrics.size.Set(float64(size))
	}
}
