package download

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// stopwatch measures elapsed wall time excluding paused intervals.
type stopwatch struct {
	clock clockwork.Clock

	mu      sync.Mutex
	started time.Time
	acc     time.Duration
	running bool
}

func newStopwatch(clock clockwork.Clock) *stopwatch {
	return &stopwatch{clock: clock}
}

// Start resets the stopwatch and starts it.
func (s *stopwatch) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acc = 0
	s.started = s.clock.Now()
	s.running = true
}

func (s *stopwatch) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.acc += s.clock.Since(s.started)
	s.running = false
}

func (s *stopwatch) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.started = s.clock.Now()
	s.running = true
}

func (s *stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.acc + s.clock.Since(s.started)
	}
	return s.acc
}

// speed returns bytes per second over elapsed, flooring elapsed at 1ms.
func speed(bytes int64, elapsed time.Duration) float64 {
	if elapsed < time.Millisecond {
		elapsed = time.Millisecond
	}
	return float64(bytes) / elapsed.Seconds()
}
