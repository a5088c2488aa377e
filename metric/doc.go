// Package metric provides Prometheus-based metrics collection and an HTTP
// server for the console client.
//
// A MetricsRegistry owns a private Prometheus registry. It registers the core
// client metrics (request outcomes, retries, dedup sharing, cache lookups,
// stream state and reconnects) up front, and lets packages such as pkg/cache
// and pkg/buffer add their own collectors under a service-scoped name.
//
//	registry := metric.NewMetricsRegistry()
//	client, _ := apiclient.New(baseURL, apiclient.WithMetrics(registry))
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go func() { _ = server.Start(ctx) }()
//
// Registering the same service/metric pair twice returns an Invalid error
// rather than panicking.
package metric
