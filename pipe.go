package gloop

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// newNonblockingPipe creates a POSIX pipe whose read end is non-blocking
// and close-on-exec, per spec.md §3's PipeSource invariants. The write end
// is left blocking: callers are expected to write only small control
// payloads (spec.md §4.4).
func newNonblockingPipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return -1, -1, err
	}
	r, w = fds[0], fds[1]
	if err := unix.SetNonblock(r, true); err != nil {
		_ = unix.Close(r)
		_ = unix.Close(w)
		return -1, -1, err
	}
	return r, w, nil
}

// PipeSource owns a self-contained pipe pair. It is readable whenever the
// kernel reports buffered bytes on the read end; Write enqueues bytes on
// the write end (may block — short control writes only, per spec.md
// §4.4).
type PipeSource struct {
	base baseSource

	mu      sync.Mutex
	r, w    int
	bufSize int
	rClosed bool
}

// NewPipeSource creates a PipeSource with its own OS pipe pair.
func NewPipeSource() (*PipeSource, error) {
	r, w, err := newNonblockingPipe()
	if err != nil {
		return nil, err
	}
	return &PipeSource{r: r, w: w, bufSize: 4096}, nil
}

// SetTrigger installs cb, invoked with the []byte read from the pipe on
// each dispatch, or nil at EOF.
func (p *PipeSource) SetTrigger(cb Trigger) { p.base.SetTrigger(cb) }

// SetBufferSize overrides the default 4KiB read chunk size.
func (p *PipeSource) SetBufferSize(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.bufSize = n
	p.mu.Unlock()
}

// Write enqueues buf on the pipe's write end. May block if the pipe is
// full; callers should only ever write short control payloads.
func (p *PipeSource) Write(buf []byte) (int, error) {
	p.mu.Lock()
	w := p.w
	p.mu.Unlock()
	return unix.Write(w, buf)
}

// Ready reports the base ready flag, set by the loop once poll(2) reports
// the read end readable (see MainLoop.Step).
func (p *PipeSource) Ready() bool { return p.base.isReadyFlag() }

// Timeout reports no opinion: pipes are purely descriptor-driven.
func (p *PipeSource) Timeout() (time.Duration, bool) {
	return 0, false
}

// SelectFD reports the pipe's read descriptor.
func (p *PipeSource) SelectFD() (int, IODirection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rClosed || p.base.Closed() {
		return 0, 0, false
	}
	return p.r, DirRead, true
}

// Closed reports true once the read end has been closed, per spec.md §3's
// "closed? is true iff r is closed".
func (p *PipeSource) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rClosed
}

// Close closes the read and write descriptors and marks the source
// terminally closed.
func (p *PipeSource) Close() {
	p.mu.Lock()
	if !p.rClosed {
		p.rClosed = true
		_ = unix.Close(p.r)
		_ = unix.Close(p.w)
	}
	p.mu.Unlock()
	p.base.Close()
}

// markReadable signals to the source that poll(2) reported the read end
// readable; called by MainLoop.Step (via onDescriptorReady) after the
// poll wait, with the loop's lock not held.
func (p *PipeSource) markReadable() { p.base.markReady(struct{}{}) }

// onDescriptorReady implements the Source interface hook the loop calls
// after poll(2) reports the read end ready.
func (p *PipeSource) onDescriptorReady() { p.markReadable() }

// drain performs the single non-blocking read spec.md §4.4 describes: up
// to bufSize bytes, returning (nil, true) at EOF so callers can close.
func (p *PipeSource) drain() (data []byte, eof bool, err error) {
	p.mu.Lock()
	r, sz := p.r, p.bufSize
	p.mu.Unlock()

	buf := make([]byte, sz)
	n, rerr := unix.Read(r, buf)
	switch {
	case rerr != nil:
		return nil, false, rerr
	case n == 0:
		return nil, true, nil
	default:
		return buf[:n], false, nil
	}
}

// Dispatch consumes the pending readability signal, performs the
// non-blocking read, and invokes the trigger with the bytes read (or nil
// at EOF, which also closes the source).
func (p *PipeSource) Dispatch() {
	if _, ok := p.base.consumeReady(); !ok {
		panic(&IllegalStateError{Op: "PipeSource.Dispatch", Reason: "source not ready"})
	}

	data, eof, err := p.drain()
	trig := p.base.currentTrigger()

	if eof {
		if trig != nil {
			trig(nil)
		}
		p.Close()
		return
	}
	if err != nil {
		if trig != nil {
			trig(nil)
		}
		p.Close()
		return
	}
	if trig == nil {
		return
	}
	if closeSentinel(trig(data)) {
		p.Close()
	}
}
