package gloop

import "sync/atomic"

// LoopState is the lifecycle state of a MainLoop.
type LoopState uint32

const (
	// StateCreated is the state of a loop that has not yet had Run called.
	StateCreated LoopState = iota
	// StateRunning is the state while a step is executing (including the
	// poll wait, which logically transitions to StateSleeping below).
	StateRunning
	// StateSleeping is the state while the loop is blocked in poll(2).
	StateSleeping
	// StateTerminating is the state once Quit has been observed but quit
	// handlers and source cleanup have not finished.
	StateTerminating
	// StateTerminated is the terminal state; no further registration is
	// accepted.
	StateTerminated
)

// String returns a human-readable name for the state.
func (s LoopState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// atomicState is a tiny atomic state machine. Unlike the teacher's
// FastState, it carries no cache-line padding: this loop has exactly one
// runner goroutine and the state is touched a handful of times per step,
// not per task — the contention the padding guards against doesn't exist
// here.
type atomicState struct {
	v atomic.Uint32
}

func newAtomicState(initial LoopState) *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(initial))
	return s
}

func (s *atomicState) Load() LoopState {
	return LoopState(s.v.Load())
}

func (s *atomicState) Store(state LoopState) {
	s.v.Store(uint32(state))
}

func (s *atomicState) CompareAndSwap(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
