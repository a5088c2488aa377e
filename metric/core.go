package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mailstream"

// Metrics contains the client-level metrics shared by the request
// orchestrator and every stream connection.
type Metrics struct {
	// Request orchestrator metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RetriesTotal    *prometheus.CounterVec
	DedupShared     prometheus.Counter
	CacheLookups    *prometheus.CounterVec
	InFlight        prometheus.Gauge
	Unauthorized    prometheus.Counter

	// Stream connection metrics
	StreamState         *prometheus.GaugeVec
	StreamReconnects    *prometheus.CounterVec
	StreamMessages      *prometheus.CounterVec
	StreamFramesDropped *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all client metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "total",
				Help:      "Logical requests by method and outcome (network, cache, shared, error)",
			},
			[]string{"method", "outcome"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Duration of network round trips in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "retries_total",
				Help:      "Attempts made after a failed first attempt",
			},
			[]string{"method"},
		),

		DedupShared: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "dedup_shared_total",
				Help:      "Logical requests answered by another caller's in-flight call",
			},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),

		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "in_flight",
				Help:      "Distinct fingerprints with an outstanding network call",
			},
		),

		Unauthorized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "requests",
				Name:      "unauthorized_total",
				Help:      "Responses with status 401 that cleared the stored credential",
			},
		),

		StreamState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "state",
				Help:      "Stream state (0=connecting, 1=open, 2=reconnecting, 3=exhausted, 4=closed)",
			},
			[]string{"stream"},
		),

		StreamReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "reconnect_attempts_total",
				Help:      "Total number of scheduled reconnect attempts",
			},
			[]string{"stream"},
		),

		StreamMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "messages_total",
				Help:      "Inbound events by disposition (delivered, buffered)",
			},
			[]string{"stream", "disposition"},
		),

		StreamFramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "frames_dropped_total",
				Help:      "Inbound frames dropped by reason (malformed, overflow)",
			},
			[]string{"stream", "reason"},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.RequestsTotal,
		c.RequestDuration,
		c.RetriesTotal,
		c.DedupShared,
		c.CacheLookups,
		c.InFlight,
		c.Unauthorized,
		c.StreamState,
		c.StreamReconnects,
		c.StreamMessages,
		c.StreamFramesDropped,
	}
}

// RecordRequest increments the logical request counter
func (c *Metrics) RecordRequest(method, outcome string) {
	c.RequestsTotal.WithLabelValues(method, outcome).Inc()
}

// RecordRoundTrip records the duration of one network attempt
func (c *Metrics) RecordRoundTrip(method string, duration time.Duration) {
	c.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRetry increments the retry counter
func (c *Metrics) RecordRetry(method string) {
	c.RetriesTotal.WithLabelValues(method).Inc()
}

// RecordCacheLookup counts a cache hit or miss
func (c *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// RecordStreamState updates the stream state gauge
func (c *Metrics) RecordStreamState(stream string, state int) {
	c.StreamState.WithLabelValues(stream).Set(float64(state))
}

// RecordStreamReconnect increments the reconnect counter
func (c *Metrics) RecordStreamReconnect(stream string) {
	c.StreamReconnects.WithLabelValues(stream).Inc()
}

// RecordStreamMessage counts an inbound event
func (c *Metrics) RecordStreamMessage(stream, disposition string) {
	c.StreamMessages.WithLabelValues(stream, disposition).Inc()
}

// RecordStreamDrop counts a dropped inbound frame
func (c *Metrics) RecordStreamDrop(stream, reason string) {
	c.StreamFramesDropped.WithLabelValues(stream, reason).Inc()
}
