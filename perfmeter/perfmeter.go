// Package perfmeter measures elapsed time and processed item counts for a
// scoped unit of work. It never influences control flow.
package perfmeter

import (
	"sync"
	"sync/atomic"
	"time"
)

type Meter struct {
	count atomic.Int64

	mu      sync.Mutex
	start   time.Time
	elapsed time.Duration
	stopped bool
}

// Start begins a measurement with a zero counter.
func Start() *Meter {
	return &Meter{start: time.Now()}
}

// Tick counts one processed item. Safe for concurrent use.
func (m *Meter) Tick() { m.count.Add(1) }

func (m *Meter) Count() int64 { return m.count.Load() }

// Stop fixes the elapsed duration. Later calls keep the first value.
func (m *Meter) Stop() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.elapsed = time.Since(m.start)
		m.stopped = true
	}
	return m.elapsed
}

// Elapsed reports the fixed duration once stopped, the running one before.
func (m *Meter) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return m.elapsed
	}
	return time.Since(m.start)
}
