package client

import (
	"sync"
	"time"
)

// scheduler is the one cancellable scheduled-task primitive the controller
// polls with. Every user action bumps the epoch; a callback or an in-flight
// result tagged with a stale epoch is discarded unconditionally. At most
// one task is pending at a time.
type scheduler struct {
	mu    sync.Mutex
	epoch int64
	timer *time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{}
}

// Epoch returns the current generation counter.
func (s *scheduler) Epoch() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Bump invalidates everything scheduled or in flight and returns the new
// epoch.
func (s *scheduler) Bump() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return s.epoch
}

// Valid reports whether results originating at the given epoch may still
// be applied.
func (s *scheduler) Valid(epoch int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch == epoch
}

// Schedule arranges fn to run after d, provided the epoch is still current
// both now and when the timer fires. A later Schedule replaces an earlier
// pending one.
func (s *scheduler) Schedule(d time.Duration, epoch int64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, func() {
		if !s.Valid(epoch) {
			return
		}
		fn()
	})
}

// Stop cancels any pending task without changing the epoch.
func (s *scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
