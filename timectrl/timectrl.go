package timectrl

import (
	"sync"
	"time"
)

// FrameSource drives a frame callback until the returned stop function is
// called. It stands in for the host's frame-presentation timer.
//
// After stop returns, fn is never invoked again and no invocation is in
// flight. stop must not be called from inside fn.
type FrameSource interface {
	Start(fn func(now time.Time)) (stop func())
}

// DefaultFPS is the frame rate used when none is configured.
const DefaultFPS = 30

// Ticker is a FrameSource backed by time.Ticker.
type Ticker struct {
	Period time.Duration
}

// NewTicker returns a Ticker firing fps times per second. Non-positive fps
// falls back to DefaultFPS.
func NewTicker(fps int) *Ticker {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Ticker{Period: time.Second / time.Duration(fps)}
}

// Start runs fn on its own goroutine once per period.
func (t *Ticker) Start(fn func(now time.Time)) func() {
	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(t.Period)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case now := <-ticker.C:
				// A tick and a quit can be ready together; quit wins.
				select {
				case <-quit:
					return
				default:
				}
				fn(now)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-done
		})
	}
}

// Manual is a FrameSource advanced explicitly by Step. Tests use it to run
// frames deterministically.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	tick   time.Duration
	nextID int
	fns    map[int]func(time.Time)
}

// NewManual constructs a Manual source starting at start and advancing by
// tick on every Step.
func NewManual(start time.Time, tick time.Duration) *Manual {
	return &Manual{
		now:  start,
		tick: tick,
		fns:  make(map[int]func(time.Time)),
	}
}

// Start registers fn; it runs on every Step until stop is called.
func (m *Manual) Start(fn func(now time.Time)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.fns[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.fns, id)
		m.mu.Unlock()
	}
}

// Step advances time by one tick and invokes every running callback. It
// returns how many callbacks ran.
func (m *Manual) Step() int {
	m.mu.Lock()
	m.now = m.now.Add(m.tick)
	now := m.now
	fns := make([]func(time.Time), 0, len(m.fns))
	for _, fn := range m.fns {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
	return len(fns)
}

// Active returns the number of started, unstopped callbacks.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
