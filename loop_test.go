package gloop

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ControlPipeRegistered(t *testing.T) {
	loop := newTestLoop(t)
	assert.Len(t, loop.Sources(), 1, "the control pipe registers itself")
}

func TestMainLoop_AddSourceAfterTerminatedFails(t *testing.T) {
	loop := newTestLoop(t)
	require.NoError(t, loop.Close())

	_, err := loop.AddIdle(func(any) any { return nil })
	assert.ErrorIs(t, err, ErrLoopTerminated)
}

func TestMainLoop_RunTwiceFails(t *testing.T) {
	loop := newTestLoop(t)

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run() }()

	require.Eventually(t, func() bool { return loop.state.Load() != StateCreated }, time.Second, time.Millisecond)

	err := loop.Run()
	assert.ErrorIs(t, err, ErrLoopAlreadyRunning)

	require.NoError(t, loop.Quit())
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestMainLoop_ReentrantRunFails(t *testing.T) {
	loop := newTestLoop(t)

	var reentrantErr error
	_, err := loop.AddIdle(func(any) any {
		reentrantErr = loop.Run()
		return false
	})
	require.NoError(t, err)

	require.NoError(t, loop.Step())
	assert.ErrorIs(t, reentrantErr, ErrReentrantRun)
}

// TestCrossThreadWakeup exercises spec.md §8's "Cross-thread wakeup"
// property: N background goroutines concurrently calling AddOnce during an
// otherwise-parked loop each deliver exactly one dispatch.
func TestCrossThreadWakeup(t *testing.T) {
	const n = 10
	loop, err := New(WithMaxPollWait(time.Minute)) // force a long park; wakeup must cut it short
	require.NoError(t, err)
	defer loop.Close()

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		contribution := i + 1 // varying contribution sizes, summed below
		go func() {
			defer wg.Done()
			// AddOnce (via AddSource) posts its own wakeup byte; no
			// separate Wake call should be needed for the loop to notice.
			_, err := loop.AddOnce(0, func() {
				mu.Lock()
				total += contribution
				mu.Unlock()
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	wantSum := n * (n + 1) / 2

	runDone := make(chan error, 1)
	go func() { runDone <- loop.Run() }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return total == wantSum
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, loop.Quit())
	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

// TestQuitHandlersRunInOrder exercises spec.md §8's "Quit handlers"
// property: every registered handler runs exactly once, in registration
// order, before Run returns.
func TestQuitHandlersRunInOrder(t *testing.T) {
	loop := newTestLoop(t)

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		loop.AddQuit(func() { order = append(order, i) })
	}

	_, err := loop.AddOnce(5*time.Millisecond, func() { _ = loop.Quit() })
	require.NoError(t, err)

	require.NoError(t, loop.Run())

	require.Len(t, order, 10)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestUnregisterOnFalse(t *testing.T) {
	loop := newTestLoop(t)

	calls := 0
	s, err := loop.AddIdle(func(any) any {
		calls++
		return false
	})
	require.NoError(t, err)

	require.NoError(t, loop.Step())
	require.NoError(t, loop.Step())
	require.NoError(t, loop.Step())

	assert.Equal(t, 1, calls)
	assert.True(t, s.Closed())
}

// TestScenario2 is spec.md §8's literal scenario 2.
func TestScenario2(t *testing.T) {
	loop := newTestLoop(t)

	total := 0
	cb1 := func() { total++ }
	cb2 := func() { total++ }

	_, err := loop.AddOnce(0, cb1)
	require.NoError(t, err)
	_, err = loop.AddTimeout(200*time.Millisecond, func(any) any {
		_ = loop.Quit()
		return false
	})
	require.NoError(t, err)
	_, err = loop.AddOnce(100*time.Millisecond, func() {
		_, err := loop.AddOnce(0, cb2)
		assert.NoError(t, err)
	})
	require.NoError(t, err)

	require.NoError(t, loop.Run())
	assert.Equal(t, 2, total)
}

func TestMainLoop_DispatchPanicIsRecovered(t *testing.T) {
	loop := newTestLoop(t)

	_, err := loop.AddIdle(func(any) any {
		panic(errors.New("boom"))
	})
	require.NoError(t, err)

	require.NotPanics(t, func() {
		require.NoError(t, loop.Step())
	})
}

func TestMainLoop_SourcesSnapshotOrder(t *testing.T) {
	loop := newTestLoop(t)

	var first, second Source
	var err error
	first, err = loop.AddIdle(func(any) any { return nil })
	require.NoError(t, err)
	second, err = loop.AddIdle(func(any) any { return nil })
	require.NoError(t, err)

	sources := loop.Sources()
	require.Len(t, sources, 3) // control pipe + two idles
	assert.Same(t, sources[1], first)
	assert.Same(t, sources[2], second)
}
