// Package testutil provides deterministic test doubles.
package testutil

import (
	"sync"
	"time"
)

// ManualScheduler satisfies the engine's Scheduler interface without real
// timers: the armed task runs only when the test calls Fire. Arming replaces
// any held task, matching last-call-wins coalescing.
type ManualScheduler struct {
	mu    sync.Mutex
	armed func()

	// Counters for assertions.
	ArmCount    int
	CancelCount int
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Arm(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = fn
	s.ArmCount++
}

func (s *ManualScheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCount++
	had := s.armed != nil
	s.armed = nil
	return had
}

// Fire runs the armed task as if the delay elapsed. Reports whether a task
// was pending.
func (s *ManualScheduler) Fire() bool {
	s.mu.Lock()
	fn := s.armed
	s.armed = nil
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Pending reports whether a task is armed.
func (s *ManualScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed != nil
}
