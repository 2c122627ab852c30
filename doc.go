// Package gloop provides a general-purpose main event loop for POSIX
// processes, modeled on the GLib main loop.
//
// # Architecture
//
// Callers register Sources (idle, timeout, pipe, I/O, unix-signal, and
// fiber/task) with a [MainLoop]. Each step of the loop collects the
// sources that are already ready, computes a sleep bound from the
// earliest timer, blocks in a single poll(2) wait bounded by that sleep
// bound, and dispatches every source that became ready — all outside the
// loop's own lock, so dispatched triggers may freely register new sources,
// close existing ones, or request that the loop quit.
//
// # Cross-thread interaction
//
// [MainLoop.AddSource], [MainLoop.Quit], and [MainLoop.Wake] are safe to
// call from any goroutine. They synchronize with a parked loop via a
// self-pipe: a byte written to the control pipe unblocks poll(2)
// immediately, regardless of how long the loop would otherwise have
// slept.
//
// # Signals and children
//
// [UnixSignalSource] marshals Unix signal delivery onto the loop via the
// same self-pipe idiom, built on Go's own async-signal-safe
// [os/signal.Notify]. [MainLoop.Spawn] tracks child processes and, on
// SIGCHLD, does a non-blocking wait on each tracked pid — never pid -1,
// so children the caller manages outside the loop are left alone.
//
// # Fibers
//
// [MainLoop.AddFiber] runs a user-supplied [FiberBody] on its own
// goroutine. The body suspends itself either with [FiberYielder.Yield],
// which resumes on the very next Step, or [FiberYielder.Await], which
// resumes once a background worker calls the awaited [Task]'s Done. Either
// way, the loop blocks only until the fiber reaches its next suspension
// point or returns.
//
// # Usage
//
//	loop, err := gloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loop.AddTimeout(100*time.Millisecond, func(any) any {
//	    fmt.Println("tick")
//	    return nil
//	})
//	loop.AddOnce(200*time.Millisecond, func() { loop.Quit() })
//	if err := loop.Run(); err != nil {
//	    log.Fatal(err)
//	}
package gloop
