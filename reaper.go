package gloop

import (
	"os/exec"
	"strconv"
	"sync"
	"syscall"
)

// ChildStatus reports how a spawned child process exited. It wraps
// syscall.WaitStatus directly rather than re-deriving exit code / signal
// / core-dump accessors that already exist on it.
type ChildStatus struct {
	Pid    int
	Status syscall.WaitStatus
}

// Exited reports whether the child terminated normally.
func (c ChildStatus) Exited() bool { return c.Status.Exited() }

// ExitCode reports the child's exit code; meaningful only if Exited.
func (c ChildStatus) ExitCode() int { return c.Status.ExitCode() }

// Signaled reports whether the child was terminated by a signal.
func (c ChildStatus) Signaled() bool { return c.Status.Signaled() }

// Signal reports the terminating signal; meaningful only if Signaled.
func (c ChildStatus) Signal() syscall.Signal { return c.Status.Signal() }

// ChildCallback is invoked once with the terminated child's status.
type ChildCallback func(status ChildStatus)

// childReaper owns the single SIGCHLD UnixSignalSource a MainLoop
// installs the first time Spawn is called, and the table of pids it is
// waiting to reap. Installation is lazy: a loop that never spawns a child
// never traps SIGCHLD, per spec.md §4.8.
type childReaper struct {
	mu       sync.Mutex
	sig      *UnixSignalSource
	watchers map[int]ChildCallback
}

// ensureReaper installs the loop's SIGCHLD trap on first use.
func (l *MainLoop) ensureReaper() error {
	var err error
	l.reaperOnce.Do(func() {
		r := &childReaper{watchers: make(map[int]ChildCallback)}
		r.sig, err = NewUnixSignalSource(syscall.SIGCHLD)
		if err != nil {
			return
		}
		r.sig.SetTrigger(func(sigs []syscall.Signal) any {
			r.reapAll(l)
			return nil
		})
		if aerr := l.AddSource(r.sig); aerr != nil {
			err = aerr
			return
		}
		l.reaper = r
	})
	return err
}

// reapAll does a non-blocking wait on each tracked pid, per spec.md §4.8:
// never wait on pid -1, since the user's own code may own children the
// loop never spawned, and reaping those would steal their exit status
// out from under a concurrent Cmd.Wait elsewhere in the process.
func (r *childReaper) reapAll(l *MainLoop) {
	r.mu.Lock()
	pids := make([]int, 0, len(r.watchers))
	for pid := range r.watchers {
		pids = append(pids, pid)
	}
	r.mu.Unlock()

	for _, pid := range pids {
		var ws syscall.WaitStatus
		got, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
		if err != nil || got != pid {
			continue
		}

		r.mu.Lock()
		cb, ok := r.watchers[pid]
		if ok {
			delete(r.watchers, pid)
		}
		r.mu.Unlock()

		if ok && cb != nil {
			status := ChildStatus{Pid: pid, Status: ws}
			l.safeCall(func() { cb(status) })
		}
	}
}

// Spawn starts cmd and invokes onExit once it terminates, reaped via the
// loop's SIGCHLD handling rather than a dedicated os/exec.Cmd.Wait
// goroutine per child — one signal source serves every spawned child.
//
// onExit may be nil, in which case the child is still reaped (avoiding a
// zombie) but no callback fires. cmd must not have Wait called on it by
// the caller; gloop owns reaping it.
func (l *MainLoop) Spawn(cmd *exec.Cmd, onExit ChildCallback) error {
	if err := l.ensureReaper(); err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return &ChildError{Argv: cmd.Args, Err: err}
	}

	r := l.reaper
	r.mu.Lock()
	r.watchers[cmd.Process.Pid] = onExit
	r.mu.Unlock()

	// A child that exits between Start and the watcher entry above can have
	// its SIGCHLD handled before its pid is tracked, and would then wait for
	// some other child's SIGCHLD. Post a SIGCHLD token on the signal pipe so
	// the loop runs reapAll again on its own goroutine.
	_, _ = r.sig.pipe.Write([]byte(strconv.Itoa(int(syscall.SIGCHLD)) + string(signalDelim)))
	return nil
}
