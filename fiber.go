package gloop

import (
	"sync"
	"time"
)

// Task is a one-shot async result: something outside the loop (another
// goroutine, an I/O callback, a timer) resolves it exactly once via Done.
// A fiber that Awaits a Task is resumed with the value passed to Done.
type Task struct {
	mu       sync.Mutex
	resolved bool
	value    any
	onDone   func(any)
}

// NewTask creates an unresolved Task.
func NewTask() *Task { return &Task{} }

// Done resolves the task with v. Only the first call has effect; it may be
// called from any goroutine, at any time, including before a fiber has
// started awaiting it.
func (t *Task) Done(v any) {
	t.mu.Lock()
	if t.resolved {
		t.mu.Unlock()
		return
	}
	t.resolved = true
	t.value = v
	cb := t.onDone
	t.mu.Unlock()
	if cb != nil {
		cb(v)
	}
}

// subscribe arranges for cb to run with the resolved value, immediately if
// the task is already resolved, otherwise once Done is called.
func (t *Task) subscribe(cb func(any)) {
	t.mu.Lock()
	if t.resolved {
		v := t.value
		t.mu.Unlock()
		cb(v)
		return
	}
	t.onDone = cb
	t.mu.Unlock()
}

// FiberYielder is the only way a FiberBody may suspend itself. It is only
// ever handed to the body running inside its own goroutine.
type FiberYielder struct {
	toFiber   chan any
	fromFiber chan fiberYield
}

// Await suspends the calling fiber until t resolves, returning the value
// passed to t.Done. The loop thread resumes the fiber goroutine to deliver
// that value; it does not block waiting for unrelated fibers or sources.
func (y *FiberYielder) Await(t *Task) any {
	y.fromFiber <- fiberYield{task: t}
	return <-y.toFiber
}

// Yield suspends the calling fiber with nothing to wait on: the source
// re-arms ready on the very next loop iteration, no Task involved. This
// is the awaiting-tick state — "resume me next time around" rather than
// "resume me once something resolves."
func (y *FiberYielder) Yield() {
	y.fromFiber <- fiberYield{tick: true}
	<-y.toFiber
}

// FiberBody is cooperative coroutine code: a function that may suspend
// itself any number of times via y.Await before returning its final
// result.
type FiberBody func(y *FiberYielder) any

// fiberYield is what a fiber goroutine sends back to its FiberSource each
// time it suspends on a Task (task set), suspends for one tick (tick
// true), or completes (done true, result holds the body's return value).
type fiberYield struct {
	task   *Task
	tick   bool
	done   bool
	result any
}

// FiberSource drives a single FiberBody to completion across however many
// Await suspensions it performs. Each time the awaited Task resolves, the
// loop wakes, resumes the fiber goroutine with the resolved value, and
// blocks only until the fiber reaches its next suspension point or
// returns — mirroring how a stackful coroutine resume works, without Go
// having one natively (see DESIGN.md).
type FiberSource struct {
	base baseSource

	toFiber   chan any
	fromFiber chan fiberYield

	done   bool
	result any
}

// NewFiberSource spawns body in its own goroutine and begins tracking its
// first suspension point.
func NewFiberSource(body FiberBody) *FiberSource {
	fs := &FiberSource{
		toFiber:   make(chan any),
		fromFiber: make(chan fiberYield),
	}
	y := &FiberYielder{toFiber: fs.toFiber, fromFiber: fs.fromFiber}
	go func() {
		result := body(y)
		fs.fromFiber <- fiberYield{done: true, result: result}
	}()
	go fs.awaitFirstYield()
	return fs
}

// awaitFirstYield performs the one receive that cannot happen inside
// Dispatch: the fiber goroutine starts running the instant it is spawned,
// before the loop has any reason to believe the source is ready.
func (fs *FiberSource) awaitFirstYield() {
	fs.arm(<-fs.fromFiber)
}

// arm records what the fiber is now waiting on (or its final result), and
// arranges for the loop to be woken once that's actionable.
func (fs *FiberSource) arm(yld fiberYield) {
	if yld.done {
		fs.done = true
		fs.result = yld.result
		fs.base.markReady(yld.result)
		return
	}
	if yld.tick {
		fs.base.markReady(nil)
		return
	}
	yld.task.subscribe(func(v any) {
		fs.base.markReady(v)
	})
}

// SetTrigger installs cb, invoked exactly once with the fiber's final
// result when it returns.
func (fs *FiberSource) SetTrigger(cb Trigger) { fs.base.SetTrigger(cb) }

// Ready reports the base ready flag, set once the currently awaited Task
// resolves, or once the fiber has returned.
func (fs *FiberSource) Ready() bool { return fs.base.isReadyFlag() }

// Timeout reports no opinion: purely event-driven.
func (fs *FiberSource) Timeout() (time.Duration, bool) { return 0, false }

// SelectFD reports no descriptor interest.
func (fs *FiberSource) SelectFD() (int, IODirection, bool) { return 0, 0, false }

// Closed reports whether the fiber has run to completion and been closed.
func (fs *FiberSource) Closed() bool { return fs.base.Closed() }

// Close marks the source closed. It does not attempt to cancel a fiber
// goroutine blocked on Await; a Task that never resolves leaks that
// goroutine, same as any blocked channel receive would.
func (fs *FiberSource) Close() { fs.base.Close() }

// onDescriptorReady is a no-op: FiberSource readiness is driven by Task
// resolution, never by a descriptor.
func (fs *FiberSource) onDescriptorReady() {}

// Dispatch resumes the fiber with the resolved value and blocks until it
// reaches its next Await or returns, or — if the fiber has already
// returned — delivers the final result to the trigger and closes the
// source.
func (fs *FiberSource) Dispatch() {
	data, ok := fs.base.consumeReady()
	if !ok {
		panic(&IllegalStateError{Op: "FiberSource.Dispatch", Reason: "source not ready"})
	}

	if fs.done {
		if trig := fs.base.currentTrigger(); trig != nil {
			trig(fs.result)
		}
		fs.base.Close()
		return
	}

	fs.toFiber <- data
	fs.arm(<-fs.fromFiber)
}
