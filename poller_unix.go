package gloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollWatch is one descriptor interest collected for a single step's wait.
type pollWatch struct {
	fd  int
	dir IODirection
}

// poller wraps unix.Poll. It is deliberately stateless between calls: each
// step builds a fresh descriptor list from the sources that are not
// already known-ready, matching spec.md §4.2's collection algorithm
// rather than trying to incrementally maintain kernel-side interest sets
// (the epoll/kqueue style). A handful of descriptors per step make the
// O(n) rebuild cheap and the code considerably simpler.
type poller struct{}

func newPoller() *poller { return &poller{} }

// wait blocks until a descriptor in watches is ready or timeout elapses,
// retrying poll(2) whenever it returns EINTR. It returns the subset of
// watches that became ready. With watches, a negative timeout blocks
// indefinitely; with no watches, a non-positive timeout returns at once. The
// caller is responsible for clamping per spec.md §4.2's "never block
// forever when sources may need re-polling" rule via WithMaxPollWait.
func (p *poller) wait(watches []pollWatch, timeout time.Duration) ([]pollWatch, error) {
	if len(watches) == 0 {
		// Nothing to watch; still sleep, so a pure-timer loop doesn't spin.
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return nil, nil
	}

	pfds := make([]unix.PollFd, len(watches))
	for i, w := range watches {
		var events int16 = unix.POLLIN
		if w.dir == DirWrite {
			events = unix.POLLOUT
		}
		pfds[i] = unix.PollFd{Fd: int32(w.fd), Events: events}
	}

	ms := int(timeout / time.Millisecond)
	if timeout < 0 {
		ms = -1
	}

	for {
		n, err := unix.Poll(pfds, ms)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		break
	}

	ready := make([]pollWatch, 0, len(watches))
	for i, pfd := range pfds {
		if pfd.Revents&(unix.POLLIN|unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, watches[i])
		}
	}
	return ready, nil
}
