package gloop

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// MainLoop is a single-threaded readiness scheduler: each Step collects
// every registered Source's readiness, blocks in a single poll(2) wait,
// then dispatches whatever became ready, in the order spec.md §4.2
// describes (already-ready sources first, then descriptor-ready ones,
// ties broken by registration order).
//
// A MainLoop is driven by exactly one goroutine at a time, via Run or a
// manual Step loop. Registration methods (AddSource and its AddXxx
// conveniences) and Wake/Quit may be called from any goroutine.
type MainLoop struct {
	opts   *loopOptions
	state  *atomicState
	poller *poller

	controlPipe   *PipeSource
	quitRequested atomic.Bool
	inDispatch    atomic.Bool

	mu           sync.Mutex
	sources      []Source
	quitHandlers []func()

	reaperOnce sync.Once
	reaper     *childReaper
}

// New creates a MainLoop in StateCreated, with its internal control pipe
// already registered. The loop does nothing until Run is called.
func New(opts ...Option) (*MainLoop, error) {
	cfg := resolveOptions(opts)

	cp, err := NewPipeSource()
	if err != nil {
		return nil, fmt.Errorf("gloop: creating control pipe: %w", err)
	}
	cp.SetBufferSize(cfg.controlBufSz)

	l := &MainLoop{
		opts:        cfg,
		state:       newAtomicState(StateCreated),
		poller:      newPoller(),
		controlPipe: cp,
	}
	cp.SetTrigger(l.handleControl)
	l.sources = append(l.sources, cp)
	return l, nil
}

// handleControl is the control pipe's trigger. '.' is a bare wakeup; 'q'
// requests termination, processed at the start of the next Step. Any
// other byte indicates a bug in gloop itself (nothing else writes to this
// pipe) and is logged, never panicked — a corrupt control stream must not
// be allowed to bring down a process the loop is meant to be keeping
// alive.
func (l *MainLoop) handleControl(event any) any {
	buf, _ := event.([]byte)
	for _, b := range buf {
		switch b {
		case '.':
		case 'q':
			l.quitRequested.Store(true)
		default:
			l.opts.logger.Log(LogEntry{
				Level:    LevelError,
				Category: "control",
				Message:  "unrecognized control byte",
				Err:      &IllegalControlError{Byte: b},
			})
		}
	}
	return nil
}

// AddSource registers src with the loop. It takes effect starting with
// the next Step; a Step already in progress does not see it. Per
// spec.md §4.2/§5, it also posts a wakeup byte to the control pipe, so a
// source added from a goroutine other than the runner is not left
// waiting out the rest of a parked poll(2) wait.
func (l *MainLoop) AddSource(src Source) error {
	l.mu.Lock()
	if l.state.Load() == StateTerminated {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.sources = append(l.sources, src)
	l.mu.Unlock()

	return l.Wake()
}

// AddIdle registers a Source that fires trigger on every iteration until
// it returns false.
func (l *MainLoop) AddIdle(trigger Trigger) (*IdleSource, error) {
	s := NewIdleSource()
	s.SetTrigger(trigger)
	if err := l.AddSource(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddTimeout registers a repeating timer firing every interval.
func (l *MainLoop) AddTimeout(interval time.Duration, trigger Trigger) (*TimeoutSource, error) {
	s := NewTimeoutSource(interval)
	s.SetTrigger(trigger)
	if err := l.AddSource(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddOnce registers a one-shot timer: cb runs exactly once, after delay,
// and the source then closes itself.
func (l *MainLoop) AddOnce(delay time.Duration, cb func()) (*TimeoutSource, error) {
	s := NewTimeoutSource(delay)
	s.SetTrigger(onceTrigger(cb))
	if err := l.AddSource(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddUnixSignal traps sigs and invokes cb with the set collected since the
// last dispatch.
func (l *MainLoop) AddUnixSignal(cb SignalCallback, sigs ...os.Signal) (*UnixSignalSource, error) {
	s, err := NewUnixSignalSource(sigs...)
	if err != nil {
		return nil, err
	}
	s.SetTrigger(cb)
	if err := l.AddSource(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// AddRead watches fd for read readiness, invoking cb with each
// non-blocking read's result until EOF, error, or Close.
func (l *MainLoop) AddRead(fd int, cb ReadCallback) (*IOSource, error) {
	s := NewIOSource(fd, DirRead)
	s.SetReadCallback(cb)
	if err := l.AddSource(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddWrite watches fd for write readiness until buf has been fully
// written, invoking cb with the outcome.
func (l *MainLoop) AddWrite(fd int, buf []byte, cb WriteCallback) (*IOSource, error) {
	s := NewIOSource(fd, DirWrite)
	s.SetWriteBuffer(buf, cb)
	if err := l.AddSource(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddFiber spawns body and registers its FiberSource, invoking onComplete
// with its return value once it finishes. onComplete may be nil.
func (l *MainLoop) AddFiber(body FiberBody, onComplete Trigger) (*FiberSource, error) {
	s := NewFiberSource(body)
	if onComplete != nil {
		s.SetTrigger(onComplete)
	}
	if err := l.AddSource(s); err != nil {
		return nil, err
	}
	return s, nil
}

// AddQuit registers handler to run once, after Run's dispatch loop exits
// and before remaining sources are closed. Handlers run in registration
// order.
func (l *MainLoop) AddQuit(handler func()) {
	l.mu.Lock()
	l.quitHandlers = append(l.quitHandlers, handler)
	l.mu.Unlock()
}

// Sources returns a snapshot of the currently registered sources, in
// registration order. Intended for introspection and tests, not for
// mutating the returned sources' membership in the loop.
func (l *MainLoop) Sources() []Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Source, len(l.sources))
	copy(out, l.sources)
	return out
}

// Wake interrupts a blocked poll(2) wait without requesting termination.
// Safe to call from any goroutine, including a signal handler — it is
// exactly the self-pipe write spec.md §4.5 describes.
func (l *MainLoop) Wake() error {
	_, err := l.controlPipe.Write([]byte{'.'})
	return err
}

// Quit requests termination. The loop observes it at the start of the
// next Step, runs any registered quit handlers, closes all remaining
// sources, and returns from Run. Safe to call from any goroutine.
func (l *MainLoop) Quit() error {
	_, err := l.controlPipe.Write([]byte{'q'})
	return err
}

// Close forcibly terminates the loop without running quit handlers or
// waiting for a Step boundary: every registered source is closed
// immediately. Intended for cleanup after Run returns an error, or for a
// loop that was never run. A Run executing concurrently treats the closed
// control pipe as a quit request once its in-flight Step returns; it then
// runs the quit handlers and returns.
func (l *MainLoop) Close() error {
	l.mu.Lock()
	if l.state.Load() == StateTerminated {
		l.mu.Unlock()
		return nil
	}
	sources := l.sources
	l.sources = nil
	l.state.Store(StateTerminated)
	l.mu.Unlock()

	for _, s := range sources {
		s.Close()
	}
	return nil
}

// Run drives Step in a loop until Quit is observed, then runs quit
// handlers and closes all remaining sources. It returns ErrLoopAlreadyRunning
// if called while already running from another goroutine, or
// ErrReentrantRun if called from within a Source's own trigger.
func (l *MainLoop) Run() error {
	if l.inDispatch.Load() {
		return ErrReentrantRun
	}
	if !l.state.CompareAndSwap(StateCreated, StateRunning) {
		return ErrLoopAlreadyRunning
	}

	l.opts.logger.Log(LogEntry{Level: LevelInfo, Category: "loop", Message: "run starting"})

	var stepErr error
	for !l.quitRequested.Load() {
		if err := l.Step(); err != nil {
			stepErr = err
			l.opts.logger.Log(LogEntry{Level: LevelError, Category: "loop", Message: "step failed", Err: err})
			break
		}
	}

	l.state.CompareAndSwap(StateRunning, StateTerminating)
	l.runQuitHandlers()

	l.mu.Lock()
	sources := l.sources
	l.sources = nil
	l.mu.Unlock()
	for _, s := range sources {
		s.Close()
	}

	l.state.Store(StateTerminated)
	l.opts.logger.Log(LogEntry{Level: LevelInfo, Category: "loop", Message: "run stopped"})
	return stepErr
}

func (l *MainLoop) runQuitHandlers() {
	l.mu.Lock()
	handlers := l.quitHandlers
	l.mu.Unlock()
	for _, h := range handlers {
		l.safeCall(h)
	}
}

func (l *MainLoop) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.opts.logger.Log(LogEntry{Level: LevelError, Category: "quit", Message: "recovered panic in quit handler", Err: panicToErr(r)})
		}
	}()
	fn()
}

// Step runs one iteration of the collection/wait/dispatch algorithm
// described in spec.md §4.2. It is exported so callers that need to
// embed gloop in an existing event loop (e.g. driving it alongside other
// work) can pump it manually instead of calling Run.
func (l *MainLoop) Step() error {
	l.state.CompareAndSwap(StateTerminating, StateRunning)

	active := l.collectActive()

	var alreadyReady []Source
	var watches []pollWatch
	var watchSrc []Source

	minWait := l.opts.maxPollWait

	for _, src := range active {
		if src.Ready() {
			alreadyReady = append(alreadyReady, src)
			continue
		}
		if d, ok := src.Timeout(); ok && d < minWait {
			minWait = d
		}
		if fd, dir, ok := src.SelectFD(); ok {
			watches = append(watches, pollWatch{fd: fd, dir: dir})
			watchSrc = append(watchSrc, src)
		}
	}

	wait := minWait
	if len(alreadyReady) > 0 {
		wait = 0
	}

	l.state.CompareAndSwap(StateRunning, StateSleeping)
	readyWatches, err := l.poller.wait(watches, wait)
	l.state.CompareAndSwap(StateSleeping, StateRunning)
	if err != nil {
		return fmt.Errorf("gloop: poll: %w", err)
	}

	dispatchList := make([]Source, 0, len(alreadyReady)+len(readyWatches))
	dispatchList = append(dispatchList, alreadyReady...)
	for _, rw := range readyWatches {
		for i, w := range watches {
			if w == rw {
				watchSrc[i].onDescriptorReady()
				dispatchList = append(dispatchList, watchSrc[i])
				break
			}
		}
	}

	for _, src := range dispatchList {
		l.safeDispatch(src)
	}

	// A closed control pipe can no longer carry a quit byte, so it counts
	// as a quit request.
	if l.controlPipe.Closed() {
		l.quitRequested.Store(true)
	}

	return nil
}

// collectActive drops closed sources from the registry and returns the
// remaining ones, in registration order.
func (l *MainLoop) collectActive() []Source {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := make([]Source, 0, len(l.sources))
	for _, s := range l.sources {
		if !s.Closed() {
			kept = append(kept, s)
		}
	}
	l.sources = kept
	return kept
}

// safeDispatch invokes src.Dispatch, recovering a panic so one
// misbehaving source cannot take down the whole loop. A Source.Dispatch
// is only ever expected to panic with *IllegalStateError, signaling a bug
// in gloop itself, but any panic is treated the same way here.
func (l *MainLoop) safeDispatch(src Source) {
	l.inDispatch.Store(true)
	defer l.inDispatch.Store(false)
	defer func() {
		if r := recover(); r != nil {
			l.opts.logger.Log(LogEntry{Level: LevelError, Category: "dispatch", Message: "recovered panic in Source.Dispatch", Err: panicToErr(r)})
		}
	}()
	src.Dispatch()
}

func panicToErr(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
