package gloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withFakeClock swaps timeNow for the duration of fn, restoring it after.
func withFakeClock(t *testing.T, start time.Time, fn func(advance func(time.Duration))) {
	t.Helper()
	now := start
	orig := timeNow
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = orig })
	fn(func(d time.Duration) { now = now.Add(d) })
}

func TestTimeoutSource_ReadyAdvancesDeadline(t *testing.T) {
	withFakeClock(t, time.Unix(0, 0), func(advance func(time.Duration)) {
		s := NewTimeoutSource(10 * time.Second)

		assert.False(t, s.Ready())
		d, ok := s.Timeout()
		assert.True(t, ok)
		assert.Equal(t, 10*time.Second, d)

		advance(10 * time.Second)
		assert.True(t, s.Ready())

		d, ok = s.Timeout()
		assert.True(t, ok)
		assert.Equal(t, 10*time.Second, d, "deadline must advance by exactly one interval")
	})
}

func TestTimeoutSource_DispatchReArmsUnlessFalse(t *testing.T) {
	s := NewTimeoutSource(time.Millisecond)
	fired := 0
	s.SetTrigger(func(any) any {
		fired++
		return nil
	})
	s.Dispatch()
	assert.Equal(t, 1, fired)
	assert.False(t, s.Closed())
}

func TestTimeoutSource_DispatchClosesOnFalse(t *testing.T) {
	s := NewTimeoutSource(time.Millisecond)
	s.SetTrigger(func(any) any { return false })
	s.Dispatch()
	assert.True(t, s.Closed())
}

// TestTimerRepetition covers spec.md §8's "Timer repetition": a 50ms timer
// run for 210ms worth of simulated time fires at least 4 times.
func TestTimerRepetition(t *testing.T) {
	withFakeClock(t, time.Unix(0, 0), func(advance func(time.Duration)) {
		loop := newTestLoop(t)

		fires := 0
		_, err := loop.AddTimeout(50*time.Millisecond, func(any) any {
			fires++
			return nil
		})
		require.NoError(t, err)

		for i := 0; i < 21; i++ {
			advance(10 * time.Millisecond)
			require.NoError(t, loop.Step())
		}

		assert.GreaterOrEqual(t, fires, 4)
	})
}

// TestTimerOneShot covers spec.md §8's "Timer one-shot" property.
func TestTimerOneShot(t *testing.T) {
	withFakeClock(t, time.Unix(0, 0), func(advance func(time.Duration)) {
		loop := newTestLoop(t)

		fires := 0
		_, err := loop.AddTimeout(50*time.Millisecond, func(any) any {
			fires++
			return false
		})
		require.NoError(t, err)

		advance(500 * time.Millisecond)
		require.NoError(t, loop.Step())

		assert.Equal(t, 1, fires)
	})
}

func TestAddOnce(t *testing.T) {
	withFakeClock(t, time.Unix(0, 0), func(advance func(time.Duration)) {
		loop := newTestLoop(t)

		fires := 0
		s, err := loop.AddOnce(10*time.Millisecond, func() { fires++ })
		require.NoError(t, err)

		advance(10 * time.Millisecond)
		require.NoError(t, loop.Step())
		assert.Equal(t, 1, fires)
		assert.True(t, s.Closed())
	})
}
