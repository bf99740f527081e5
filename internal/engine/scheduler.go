package engine

import (
	"sync"
	"time"
)

// Scheduler is a single-slot deferred task: arming replaces any pending
// task, so a stream of Arm calls collapses to the last one (last-call-wins
// coalescing, not throttling). Cancel reports whether a task was pending.
type Scheduler interface {
	Arm(d time.Duration, fn func())
	Cancel() bool
}

// TimerScheduler runs armed tasks on a time.Timer.
type TimerScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

func (s *TimerScheduler) Arm(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fn)
}

func (s *TimerScheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return false
	}
	stopped := s.timer.Stop()
	s.timer = nil
	return stopped
}
