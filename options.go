package gloop

import "time"

// loopOptions holds configuration resolved from a caller's Option values.
type loopOptions struct {
	logger       Logger
	maxPollWait  time.Duration
	controlBufSz int
}

// Option configures a MainLoop at construction time.
type Option interface {
	apply(*loopOptions)
}

type optionFunc func(*loopOptions)

func (f optionFunc) apply(o *loopOptions) { f(o) }

// WithLogger sets the Logger used for loop lifecycle, dispatch-panic, and
// poll-error reporting. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *loopOptions) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithMaxPollWait caps how long a single step will block in poll(2) even
// when no timer is armed. This bounds how quickly the loop notices a
// closed source that has no other wakeup path. Defaults to 5 seconds.
func WithMaxPollWait(d time.Duration) Option {
	return optionFunc(func(o *loopOptions) {
		if d > 0 {
			o.maxPollWait = d
		}
	})
}

// WithControlBufferSize sets the read buffer size for the internal control
// pipe. Defaults to 4096 bytes, matching spec.md §4.4. Other PipeSources
// are not affected; their size is set with PipeSource.SetBufferSize.
func WithControlBufferSize(n int) Option {
	return optionFunc(func(o *loopOptions) {
		if n > 0 {
			o.controlBufSz = n
		}
	})
}

func resolveOptions(opts []Option) *loopOptions {
	cfg := &loopOptions{
		logger:       NewNoOpLogger(),
		maxPollWait:  5 * time.Second,
		controlBufSz: 4096,
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(cfg)
		}
	}
	return cfg
}
