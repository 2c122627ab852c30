package gloop

import (
	"errors"
	"fmt"
)

// Standard sentinel errors returned by MainLoop operations.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that
	// already has a runner.
	ErrLoopAlreadyRunning = errors.New("gloop: loop is already running")

	// ErrLoopTerminated is returned when AddSource or a related
	// registration call is attempted after Run has returned.
	ErrLoopTerminated = errors.New("gloop: loop has terminated")

	// ErrReentrantRun is returned when Run is called from a trigger
	// executing on the loop's own goroutine.
	ErrReentrantRun = errors.New("gloop: cannot call Run from within the loop")
)

// IllegalStateError reports a violation of a Source's own state machine —
// e.g. dispatch was attempted on a Source that was not ready. The loop
// guarantees by construction that this never happens. It is raised as a
// panic; inside MainLoop dispatch, safeDispatch recovers and logs it like
// any other panic, and the loop keeps running (it is not re-raised).
type IllegalStateError struct {
	Op     string
	Reason string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("gloop: illegal state in %s: %s", e.Op, e.Reason)
}

// IllegalControlError reports a control-pipe byte outside the recognized
// set ('.' wakeup, 'q' quit). This can only happen due to a bug in gloop
// itself, never from user input. The loop logs it and keeps running; it
// is not fatal.
type IllegalControlError struct {
	Byte byte
}

func (e *IllegalControlError) Error() string {
	return fmt.Sprintf("gloop: illegal control byte %q on control pipe", e.Byte)
}

// ProtocolError reports a fiber body yielding a value other than "nothing"
// or a thunk.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gloop: fiber protocol error: %s", e.Reason)
}

// ChildError reports that Spawn failed before a PID was obtained.
type ChildError struct {
	Argv []string
	Err  error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("gloop: spawn %v failed: %v", e.Argv, e.Err)
}

func (e *ChildError) Unwrap() error {
	return e.Err
}
