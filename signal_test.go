package gloop

import (
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignals(t *testing.T) {
	buf := []byte(strconv.Itoa(int(syscall.SIGUSR1)) + "\n" + strconv.Itoa(int(syscall.SIGUSR2)) + "\n")
	sigs := parseSignals(buf)
	require.Len(t, sigs, 2)
	assert.Equal(t, syscall.SIGUSR1, sigs[0])
	assert.Equal(t, syscall.SIGUSR2, sigs[1])
}

func TestParseSignals_IgnoresGarbage(t *testing.T) {
	sigs := parseSignals([]byte("\n\nnotanumber\n10\n"))
	require.Len(t, sigs, 1)
	assert.Equal(t, syscall.Signal(10), sigs[0])
}

// TestSignalMarshaling exercises spec.md §8's "Signal marshaling" property:
// 10 raised signals produce a trigger whose aggregated length across
// dispatches sums to 10, and the trigger runs on the loop's own goroutine.
func TestSignalMarshaling(t *testing.T) {
	loop := newTestLoop(t)

	total := 0
	done := make(chan struct{})
	s, err := loop.AddUnixSignal(func(sigs []syscall.Signal) any {
		total += len(sigs)
		if total >= 10 {
			close(done)
		}
		return nil
	}, syscall.SIGUSR1)
	require.NoError(t, err)
	defer s.Close()

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run() }()

	pid := os.Getpid()
	for i := 0; i < 10; i++ {
		require.NoError(t, syscall.Kill(pid, syscall.SIGUSR1))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("only %d of 10 signals observed", total)
	}

	require.NoError(t, loop.Quit())
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	assert.Equal(t, 10, total)
}

func TestUnixSignalSource_CloseMarksClosed(t *testing.T) {
	s, err := NewUnixSignalSource(syscall.SIGUSR2)
	require.NoError(t, err)
	s.SetTrigger(func([]syscall.Signal) any { return nil })
	s.Close()
	assert.True(t, s.Closed())
}
