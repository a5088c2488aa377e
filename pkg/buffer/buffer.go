package buffer

import (
	"sync"

	"github.com/MailerSuite/Final-sub009/errors"
)

// DropCallback is called with each item evicted to make room for a newer one.
type DropCallback[T any] func(item T)

// Ring is a bounded FIFO queue. Writes never block; when full, the oldest
// item is evicted. Items come out in write order.
type Ring[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	rec      *recorder
	opts     *bufferOptions[T]
}

// NewRing creates a ring with the specified capacity. Stats are always
// collected; metrics are optional via WithMetrics.
func NewRing[T any](capacity int, options ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "buffer", "NewRing",
			"capacity must be positive")
	}

	opts := applyOptions(options...)
	rec, err := newRecorder(opts.metricsReg, opts.metricsPrefix, capacity)
	if err != nil {
		return nil, errors.WrapTransient(err, "buffer", "NewRing", "metrics registration")
	}

	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		rec:      rec,
		opts:     opts,
	}, nil
}

// Write appends an item. It reports false when the oldest item was evicted
// to make room.
func (r *Ring[T]) Write(item T) bool {
	r.mu.Lock()

	if r.size < r.capacity {
		r.push(item)
		size := r.size
		r.mu.Unlock()

		r.rec.write(size)
		return true
	}

	dropped := r.items[r.tail]
	var zero T
	r.items[r.tail] = zero
	r.tail = (r.tail + 1) % r.capacity
	r.size--
	r.push(item)
	size := r.size
	r.mu.Unlock()

	r.rec.drop()
	r.rec.write(size)
	if r.opts.dropCallback != nil {
		r.opts.dropCallback(dropped)
	}
	return false
}

func (r *Ring[T]) push(item T) {
	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++
}

// Drain removes and returns every buffered item, oldest first.
func (r *Ring[T]) Drain() []T {
	r.mu.Lock()
	if r.size == 0 {
		r.mu.Unlock()
		return nil
	}

	out := make([]T, 0, r.size)
	var zero T
	for r.size > 0 {
		out = append(out, r.items[r.tail])
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % r.capacity
		r.size--
	}
	r.head, r.tail = 0, 0
	r.mu.Unlock()

	r.rec.read(len(out), 0)
	return out
}

// Len returns the current number of items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Capacity returns the maximum number of items the ring can hold.
func (r *Ring[T]) Capacity() int {
	return r.capacity
}

// Stats returns buffer statistics.
func (r *Ring[T]) Stats() *Statistics {
	return r.rec.stats
}

// Close unregisters the ring's Prometheus collectors so the component name
// can be reused. Buffered items stay readable. Safe to call more than once.
func (r *Ring[T]) Close() {
	r.rec.release()
}
