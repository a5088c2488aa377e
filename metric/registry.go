package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MailerSuite/Final-sub009/errors"
)

// MetricsRegistry owns the Prometheus registry for one client process: the
// core request and stream metrics plus collectors that packages such as the
// response cache and pause buffer add under a component name.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics

	mu         sync.Mutex
	collectors map[string]prometheus.Collector
}

// NewMetricsRegistry creates a registry with the core metrics and the Go
// runtime and process collectors already registered.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
		collectors:         make(map[string]prometheus.Collector),
	}

	r.prometheusRegistry.MustRegister(r.Metrics.collectors()...)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the request and stream metrics.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// RegisterCounter registers counter as component.name.
func (r *MetricsRegistry) RegisterCounter(component, name string, counter prometheus.Counter) error {
	return r.register("RegisterCounter", component, name, counter)
}

// RegisterGauge registers gauge as component.name.
func (r *MetricsRegistry) RegisterGauge(component, name string, gauge prometheus.Gauge) error {
	return r.register("RegisterGauge", component, name, gauge)
}

func (r *MetricsRegistry) register(method, component, name string, c prometheus.Collector) error {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collectors[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for %s", name, component),
			"MetricsRegistry", method, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.WrapInvalid(err, "MetricsRegistry", method,
				fmt.Sprintf("prometheus conflict for metric %s", name))
		}
		return errors.WrapFatal(err, "MetricsRegistry", method, "register collector with prometheus")
	}

	r.collectors[key] = c
	return nil
}

// Unregister removes component.name and reports whether it was present.
func (r *MetricsRegistry) Unregister(component, name string) bool {
	key := component + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.collectors[key]
	if !exists || !r.prometheusRegistry.Unregister(c) {
		return false
	}
	delete(r.collectors, key)
	return true
}
