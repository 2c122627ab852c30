package gloop

import (
	"sync"
	"time"
)

// timeNow is time.Now, indirected so tests can inject a controllable
// clock without sleeping real wall-clock seconds for every case.
var timeNow = time.Now

// TimeoutSource fires its trigger once per interval, catching up by at
// most one tick if the loop was stalled — it never replays missed ticks
// (spec.md §4.2 "Timer catch-up").
type TimeoutSource struct {
	base baseSource

	mu           sync.Mutex
	interval     time.Duration
	nextDeadline time.Time
}

// NewTimeoutSource creates a TimeoutSource armed to first fire interval
// from now. interval must be positive.
func NewTimeoutSource(interval time.Duration) *TimeoutSource {
	return &TimeoutSource{
		interval:     interval,
		nextDeadline: timeNow().Add(interval),
	}
}

// SetTrigger installs the callback invoked on each fire.
func (s *TimeoutSource) SetTrigger(cb Trigger) { s.base.SetTrigger(cb) }

// Ready reports whether the deadline has passed, advancing the next
// deadline by one interval from the prior deadline as a side effect — per
// spec.md §4.3, "simultaneously advances next_deadline". If that is still
// not in the future (the loop stalled past several deadlines), it skips
// ahead to the first future tick instead of replaying the missed ones.
// Called once per collection pass, never re-entrantly, so the side effect
// is safe.
func (s *TimeoutSource) Ready() bool {
	if s.base.Closed() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := timeNow()
	if now.Before(s.nextDeadline) {
		return false
	}
	s.nextDeadline = s.nextDeadline.Add(s.interval)
	if s.interval > 0 && !s.nextDeadline.After(now) {
		missed := now.Sub(s.nextDeadline)/s.interval + 1
		s.nextDeadline = s.nextDeadline.Add(missed * s.interval)
	}
	return true
}

// Timeout reports the delay remaining until the next deadline, clamped to
// zero.
func (s *TimeoutSource) Timeout() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.nextDeadline.Sub(timeNow())
	if d < 0 {
		d = 0
	}
	return d, true
}

// SelectFD reports no descriptor interest.
func (s *TimeoutSource) SelectFD() (int, IODirection, bool) { return 0, 0, false }

// Closed reports whether Close has been called.
func (s *TimeoutSource) Closed() bool { return s.base.Closed() }

// Close marks the source closed.
func (s *TimeoutSource) Close() { s.base.Close() }

// onDescriptorReady is a no-op: TimeoutSource has no descriptor interest.
func (s *TimeoutSource) onDescriptorReady() {}

// Dispatch invokes the trigger and closes the source if it returns the
// literal false sentinel; any other return re-arms it (it is already
// re-armed, by Ready, for the next deadline).
func (s *TimeoutSource) Dispatch() {
	trig := s.base.currentTrigger()
	if trig == nil {
		return
	}
	if closeSentinel(trig(nil)) {
		s.base.Close()
	}
}

// onceTrigger wraps cb so the source closes unconditionally after its
// first fire, implementing spec.md §4.3's add_once semantics on top of a
// plain TimeoutSource.
func onceTrigger(cb func()) Trigger {
	return func(any) any {
		cb()
		return false
	}
}
