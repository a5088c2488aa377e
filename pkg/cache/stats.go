package cache

import (
	"sync/atomic"
	"time"
)

// Statistics tracks cache performance counters.
type Statistics struct {
	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	deletes     atomic.Int64
	evictions   atomic.Int64
	currentSize atomic.Int64
	startTime   time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// Hits returns the total number of cache hits.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the total number of cache misses, expired reads included.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the total number of set operations.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Deletes returns the total number of explicit deletions.
func (s *Statistics) Deletes() int64 { return s.deletes.Load() }

// Evictions returns the number of entries removed because they expired.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

// CurrentSize returns the last observed entry count.
func (s *Statistics) CurrentSize() int64 { return s.currentSize.Load() }

// HitRatio returns hits / (hits + misses), or 0 before the first lookup.
func (s *Statistics) HitRatio() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Uptime returns how long the statistics have been collected.
func (s *Statistics) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Summary is a copyable snapshot of Statistics.
type Summary struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int64         `json:"size"`
	HitRatio  float64       `json:"hit_ratio"`
	Uptime    time.Duration `json:"uptime"`
}

// Summary returns a snapshot of all counters.
func (s *Statistics) Summary() Summary {
	return Summary{
		Hits:      s.Hits(),
		Misses:    s.Misses(),
		Sets:      s.Sets(),
		Deletes:   s.Deletes(),
		Evictions: s.Evictions(),
		Size:      s.CurrentSize(),
		HitRatio:  s.HitRatio(),
		Uptime:    s.Uptime(),
	}
}
