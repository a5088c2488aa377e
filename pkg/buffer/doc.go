// Package buffer provides Ring, a bounded, thread-safe FIFO used to hold
// stream messages while delivery is paused.
//
// Writes never block. When the ring is full the oldest item is evicted so the
// newest items survive. Drain returns everything in write order and empties
// the ring.
//
//	ring, err := buffer.NewRing[Event](1000,
//		buffer.WithDropCallback[Event](func(e Event) { log.Warn("dropped", "seq", e.Seq) }))
//	ring.Write(ev)
//	for _, ev := range ring.Drain() {
//		deliver(ev)
//	}
//
// Statistics are always collected; WithMetrics also exports them to Prometheus
// until Close.
package buffer
