// Package health reports whether the client's connections are usable.
//
// A Status is healthy, degraded or unhealthy. Stream connections map their
// state with FromStreamState: an open stream is healthy, one that is
// connecting or waiting to reconnect is degraded, and one that has closed or
// exhausted its reconnect budget is unhealthy.
//
// Monitor collects statuses by name. Values can be pushed with Update or
// pulled from a Probe on each read:
//
//	monitor := health.NewMonitor()
//	monitor.Register("stream.logs", conn.Health)
//	monitor.Update("api", health.NewHealthy("api", "reachable"))
//	overall := monitor.AggregateHealth("mailstream")
//
// Error text placed in a status message is sanitized so URLs, file paths,
// addresses and credentials are not exposed on a health endpoint.
package health
