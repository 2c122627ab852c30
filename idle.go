package gloop

import "time"

// IdleSource is always ready and fires on every loop iteration until
// closed. Registering one forces the multiplexer wait to degenerate to a
// non-blocking poll (spec.md §3).
type IdleSource struct {
	base baseSource
}

// NewIdleSource creates an IdleSource. Install a callback with SetTrigger
// before registering it with a MainLoop, or use MainLoop.AddIdle.
func NewIdleSource() *IdleSource {
	return &IdleSource{}
}

// SetTrigger installs the callback invoked on every ready iteration.
func (s *IdleSource) SetTrigger(cb Trigger) { s.base.SetTrigger(cb) }

// Ready always reports true while the source is open.
func (s *IdleSource) Ready() bool { return !s.base.Closed() }

// Timeout always reports zero: an idle source must never let the
// multiplexer block.
func (s *IdleSource) Timeout() (time.Duration, bool) { return 0, true }

// SelectFD reports no descriptor interest.
func (s *IdleSource) SelectFD() (int, IODirection, bool) { return 0, 0, false }

// Closed reports whether Close has been called.
func (s *IdleSource) Closed() bool { return s.base.Closed() }

// Close marks the source closed.
func (s *IdleSource) Close() { s.base.Close() }

// onDescriptorReady is a no-op: IdleSource has no descriptor interest.
func (s *IdleSource) onDescriptorReady() {}

// Dispatch invokes the trigger with a nil event and closes the source if
// the trigger returns the literal false sentinel.
func (s *IdleSource) Dispatch() {
	trig := s.base.currentTrigger()
	if trig == nil {
		return
	}
	if closeSentinel(trig(nil)) {
		s.base.Close()
	}
}
