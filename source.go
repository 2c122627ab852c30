package gloop

import (
	"sync"
	"time"
)

// IODirection selects which readiness a descriptor-backed Source watches
// for.
type IODirection int

const (
	// DirRead watches for read readiness.
	DirRead IODirection = iota
	// DirWrite watches for write readiness.
	DirWrite
)

func (d IODirection) String() string {
	if d == DirWrite {
		return "write"
	}
	return "read"
}

// Trigger is the callback a caller installs on a Source. Its return value
// is interpreted per spec.md §4.1: the literal boolean false closes the
// source; anything else — including no meaningful value — keeps it alive.
type Trigger func(event any) any

// Source is the contract every concrete source type (Idle, Timeout, Pipe,
// IO, UnixSignal, Fiber) satisfies. The MainLoop only ever talks to
// sources through this interface, never through concrete types — see
// spec.md §9's "tagged variant plus common trait" design note.
type Source interface {
	// Ready reports whether the source is already ready without needing a
	// descriptor-readiness wait. Called once per collection pass; may have
	// side effects (TimeoutSource advances its own deadline here).
	Ready() bool

	// Timeout reports how long the multiplexer may block before this
	// source needs re-checking. ok is false if the source has no opinion.
	Timeout() (d time.Duration, ok bool)

	// SelectFD reports a descriptor this source wants watched. ok is false
	// if the source isn't descriptor-backed.
	SelectFD() (fd int, dir IODirection, ok bool)

	// Dispatch is called exactly once per step for every source that was
	// ready, outside the loop's lock. It must consume any pending event
	// data and invoke the installed trigger/callback.
	Dispatch()

	// Closed reports whether the source has been closed. Closed sources
	// are dropped from the registry on the next collection pass.
	Closed() bool

	// Close marks the source closed. Idempotent.
	Close()

	// onDescriptorReady is invoked by the loop when poll(2) reports this
	// source's SelectFD descriptor ready, before Dispatch. Sources with no
	// descriptor interest implement it as a no-op.
	onDescriptorReady()
}

// closeSentinel reports whether a Trigger's return value is the literal
// boolean false — the "close this source" sentinel from spec.md §4.1.
func closeSentinel(v any) bool {
	b, ok := v.(bool)
	return ok && !b
}

// baseSource holds the state spec.md §3 ascribes to every Source:
// closed, ready, event_data, and a single installed trigger. Concrete
// source types embed it and layer their own Ready/Timeout/SelectFD/
// Dispatch on top — composition, not inheritance, per spec.md §9.
type baseSource struct {
	mu        sync.Mutex
	closed    bool
	ready     bool
	eventData any
	trigger   Trigger

	// UserData is an opaque slot mirroring GLib's g_source_set_user_data.
	// gloop never reads it. Concrete sources keep baseSource in an
	// unexported field, so callers outside the package cannot reach it.
	UserData any
}

// Closed reports whether Close has been called.
func (b *baseSource) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close marks the source closed. Once true, per spec.md §3 it never
// becomes false again.
func (b *baseSource) Close() {
	b.mu.Lock()
	b.closed = true
	b.ready = false
	b.eventData = nil
	b.mu.Unlock()
}

// SetTrigger installs cb as the source's single trigger, replacing any
// prior one.
func (b *baseSource) SetTrigger(cb Trigger) {
	b.mu.Lock()
	b.trigger = cb
	b.mu.Unlock()
}

// currentTrigger returns the installed trigger, or nil.
func (b *baseSource) currentTrigger() Trigger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trigger
}

// markReady posts data and flips ready true, per spec.md §4.1's
// "ready!(data)". A no-op on a closed source.
func (b *baseSource) markReady(data any) {
	b.mu.Lock()
	if !b.closed {
		b.ready = true
		b.eventData = data
	}
	b.mu.Unlock()
}

// isReadyFlag peeks the ready flag without consuming it. Used by source
// types whose Ready() is purely flag-driven (Pipe, IO, Signal, Fiber).
func (b *baseSource) isReadyFlag() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// consumeReady pops the ready flag and event data together. ok is false
// if the source was not ready — callers must treat that as the
// IllegalState failure spec.md §4.1 describes, since the loop guarantees
// by construction that Dispatch is never called otherwise.
func (b *baseSource) consumeReady() (data any, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return nil, false
	}
	data = b.eventData
	b.ready = false
	b.eventData = nil
	return data, true
}
