package audio

import (
	"sync"
	"time"
)

// Scheduler owns the single next-start cursor for response playback. Each
// frame starts at the later of now and the cursor, and the cursor advances
// by the frame's duration, so a streamed response plays gaplessly and in
// order without buffering the whole response first.
type Scheduler struct {
	mu     sync.Mutex
	now    func() time.Time
	cursor time.Time

	scheduled time.Duration
	truncated time.Duration
}

// NewScheduler creates a scheduler against the real clock.
func NewScheduler() *Scheduler {
	return NewSchedulerWithClock(time.Now)
}

// NewSchedulerWithClock creates a scheduler against an injected clock.
// Tests drive the clock by hand.
func NewSchedulerWithClock(now func() time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// Schedule reserves the next playback slot for a frame of duration d and
// returns the frame's start time.
func (s *Scheduler) Schedule(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	if s.cursor.After(start) {
		start = s.cursor
	}
	s.cursor = start.Add(d)
	s.scheduled += d
	return start
}

// Interrupt resets the cursor to now, truncating any scheduled but not yet
// played audio. Returns the truncated duration.
func (s *Scheduler) Interrupt() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var cut time.Duration
	if s.cursor.After(now) {
		cut = s.cursor.Sub(now)
	}
	s.cursor = now
	s.truncated += cut
	return cut
}

// Buffered reports how far ahead of the clock the cursor currently sits,
// i.e. how much audio is scheduled but not yet played.
func (s *Scheduler) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cursor.After(now) {
		return s.cursor.Sub(now)
	}
	return 0
}

// Scheduled returns the total duration handed to Schedule since creation.
func (s *Scheduler) Scheduled() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled
}

// Truncated returns the total duration cut by Interrupt since creation.
func (s *Scheduler) Truncated() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}
