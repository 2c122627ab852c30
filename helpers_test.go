package gloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestLoop creates a MainLoop with a short max poll wait, so a Step
// call against an otherwise-idle loop (no ready source, no timeout, no
// readable descriptor) returns in milliseconds rather than blocking for
// the production default.
func newTestLoop(t *testing.T, opts ...Option) *MainLoop {
	t.Helper()
	all := append([]Option{WithMaxPollWait(10 * time.Millisecond)}, opts...)
	loop, err := New(all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return loop
}
