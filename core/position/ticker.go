package position

import (
	"sync"
	"time"
)

// Ticker delivers polling ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory starts a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

// RealTicker is the wall clock ticker.
func RealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// ManualTicks is a logical clock for tests. Tick hands one tick to whoever is polling and
// returns after it was received.
type ManualTicks struct {
	mu     sync.Mutex
	active *manualTicker
	now    time.Time
	starts int
}

func NewManualTicks() *ManualTicks {
	return &ManualTicks{now: time.Unix(0, 0)}
}

// Factory is the TickerFactory to hand to the controller.
func (m *ManualTicks) Factory(d time.Duration) Ticker {
	t := &manualTicker{
		owner:    m,
		interval: d,
		c:        make(chan time.Time),
		stopped:  make(chan struct{}),
	}
	m.mu.Lock()
	m.active = t
	m.starts++
	m.mu.Unlock()
	return t
}

// Polling reports whether a ticker is currently running.
func (m *ManualTicks) Polling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Starts counts how many tickers were created.
func (m *ManualTicks) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Tick fires once. It returns false when nothing is polling.
func (m *ManualTicks) Tick() bool {
	m.mu.Lock()
	t := m.active
	if t == nil {
		m.mu.Unlock()
		return false
	}
	m.now = m.now.Add(t.interval)
	now := m.now
	m.mu.Unlock()

	select {
	case t.c <- now:
		return true
	case <-t.stopped:
		return false
	}
}

// TickN fires n ticks and reports how many were delivered.
func (m *ManualTicks) TickN(n int) int {
	delivered := 0
	for i := 0; i < n; i++ {
		if !m.Tick() {
			break
		}
		delivered++
	}
	return delivered
}

type manualTicker struct {
	owner    *ManualTicks
	interval time.Duration
	c        chan time.Time
	stopped  chan struct{}
	once     sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.once.Do(func() {
		close(t.stopped)
		t.owner.mu.Lock()
		if t.owner.active == t {
			t.owner.active = nil
		}
		t.owner.mu.Unlock()
	})
}
