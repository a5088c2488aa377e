package health

import (
	"sort"
	"sync"
	"time"
)

// Probe reports the current health of something the monitor does not own.
type Probe func() Status

// Monitor tracks named statuses, either pushed with Update or pulled from
// registered probes on every read.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	probes   map[string]Probe
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		probes:   make(map[string]Probe),
	}
}

// Update stores a pushed status under name.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.statuses[name] = status
	m.mu.Unlock()
}

// Register installs a probe under name, replacing any pushed status.
func (m *Monitor) Register(name string, probe Probe) {
	m.mu.Lock()
	delete(m.statuses, name)
	m.probes[name] = probe
	m.mu.Unlock()
}

// Remove stops tracking name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	delete(m.statuses, name)
	delete(m.probes, name)
	m.mu.Unlock()
}

// Get returns the current status for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	probe, isProbe := m.probes[name]
	status, exists := m.statuses[name]
	m.mu.RUnlock()

	if isProbe {
		return m.run(name, probe), true
	}
	return status, exists
}

// Snapshot returns every status sorted by name. Probes run outside the lock.
func (m *Monitor) Snapshot() []Status {
	m.mu.RLock()
	out := make([]Status, 0, len(m.statuses)+len(m.probes))
	for _, s := range m.statuses {
		out = append(out, s)
	}
	probes := make(map[string]Probe, len(m.probes))
	for name, p := range m.probes {
		probes[name] = p
	}
	m.mu.RUnlock()

	for name, p := range probes {
		out = append(out, m.run(name, p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// AggregateHealth returns an aggregated status for everything tracked.
func (m *Monitor) AggregateHealth(systemName string) Status {
	return Aggregate(systemName, m.Snapshot())
}

// Count returns the number of tracked names.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses) + len(m.probes)
}

func (m *Monitor) run(name string, p Probe) Status {
	s := p()
	s.Component = name
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	return s
}
