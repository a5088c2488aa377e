// Package cache provides the response cache used by the request orchestrator:
// a generic, thread-safe map from request fingerprint to value where every
// entry carries its own time-to-live.
//
// Expired entries are never swept in the background. A Get that finds an
// expired entry reports a miss and removes it, so memory is reclaimed lazily
// as keys are read again. Statistics are always collected; Prometheus export
// is optional via WithMetrics.
//
// # Usage
//
//	c, err := cache.NewTTL[*apiclient.Response](5*time.Minute)
//	if err != nil {
//		return err
//	}
//	c.Set(fingerprint, resp)
//	if resp, ok := c.Get(fingerprint); ok {
//		// fresh hit
//	}
//
// An entry stored at S with TTL T is valid at instant N iff N - S < T. At or
// past the boundary, Get reports a miss and removes the entry.
//
// Tests control time with WithClock:
//
//	now := time.Unix(0, 0)
//	c, _ := cache.NewTTL[int](time.Second, cache.WithClock[int](func() time.Time { return now }))
//
// Export statistics to Prometheus with WithMetrics(registry, "api_cache").
package cache
