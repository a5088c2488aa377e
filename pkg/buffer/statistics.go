package buffer

import (
	"sync/atomic"
	"time"
)

// Statistics tracks buffer performance counters.
type Statistics struct {
	writes      atomic.Int64
	reads       atomic.Int64
	drops       atomic.Int64
	currentSize atomic.Int64
	maxSize     atomic.Int64
	startTime   time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// Writes returns the number of accepted writes.
func (s *Statistics) Writes() int64 { return s.writes.Load() }

// Reads returns the number of items removed by Read or Drain.
func (s *Statistics) Reads() int64 { return s.reads.Load() }

// Drops returns the number of items lost to the overflow policy.
func (s *Statistics) Drops() int64 { return s.drops.Load() }

// CurrentSize returns the last observed item count.
func (s *Statistics) CurrentSize() int64 { return s.currentSize.Load() }

// MaxSize returns the high-water mark.
func (s *Statistics) MaxSize() int64 { return s.maxSize.Load() }

// DropRate returns drops / (writes + drops).
func (s *Statistics) DropRate() float64 {
	drops := s.Drops()
	total := s.Writes() + drops
	if total == 0 {
		return 0
	}
	return float64(drops) / float64(total)
}

// Uptime returns how long the statistics have been collected.
func (s *Statistics) Uptime() time.Duration {
	return time.Since(s.startTime)
}

func (s *Statistics) updateSize(size int64) {
	s.currentSize.Store(size)
	for {
		cur := s.maxSize.Load()
		if size <= cur || s.maxSize.CompareAndSwap(cur, size) {
			return
		}
	}
}

// StatsSummary is a copyable snapshot of Statistics.
type StatsSummary struct {
	Writes      int64   `json:"writes"`
	Reads       int64   `json:"reads"`
	Drops       int64   `json:"drops"`
	CurrentSize int64   `json:"current_size"`
	MaxSize     int64   `json:"max_size"`
	DropRate    float64 `json:"drop_rate"`
}

// Summary returns a snapshot of all counters.
func (s *Statistics) Summary() StatsSummary {
	return StatsSummary{
		Writes:      s.Writes(),
		Reads:       s.Reads(),
		Drops:       s.Drops(),
		CurrentSize: s.CurrentSize(),
		MaxSize:     s.MaxSize(),
		DropRate:    s.DropRate(),
	}
}
