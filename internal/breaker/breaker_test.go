package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance the breaker's notion of time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	b := New(threshold, cooldown)
	b.now = clock.now
	return b, clock
}

func TestOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure("roadsurfer")
		require.True(t, b.Allow("roadsurfer"), "below threshold must allow")
	}

	b.RecordFailure("roadsurfer")
	require.False(t, b.Allow("roadsurfer"))
	require.Equal(t, StateOpen, b.State("roadsurfer").State)
	require.Equal(t, 3, b.State("roadsurfer").Failures)
}

func TestSuccessResetsCounter(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure("roadsurfer")
	b.RecordFailure("roadsurfer")
	b.RecordSuccess("roadsurfer")
	require.Equal(t, 0, b.State("roadsurfer").Failures)

	// Two more failures must not open: the streak restarted
	b.RecordFailure("roadsurfer")
	b.RecordFailure("roadsurfer")
	require.True(t, b.Allow("roadsurfer"))
}

func TestHalfOpenProbeAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)

	b.RecordFailure("roadsurfer")
	b.RecordFailure("roadsurfer")
	require.False(t, b.Allow("roadsurfer"))

	clock.advance(61 * time.Second)
	require.True(t, b.Allow("roadsurfer"))
	require.Equal(t, StateHalfOpen, b.State("roadsurfer").State)

	b.RecordSuccess("roadsurfer")
	require.Equal(t, StateClosed, b.State("roadsurfer").State)
	require.True(t, b.Allow("roadsurfer"))
}

func TestFailedProbeExtendsCooldown(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)

	b.RecordFailure("roadsurfer")
	b.RecordFailure("roadsurfer")
	clock.advance(61 * time.Second)
	require.True(t, b.Allow("roadsurfer")) // half-open probe

	b.RecordFailure("roadsurfer")
	require.False(t, b.Allow("roadsurfer"))

	// One cooldown is not enough after a failed probe
	clock.advance(61 * time.Second)
	require.False(t, b.Allow("roadsurfer"))

	// The doubled window eventually expires
	clock.advance(61 * time.Second)
	require.True(t, b.Allow("roadsurfer"))
}

func TestCircuitsAreIndependent(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	b.RecordFailure("roadsurfer")
	require.False(t, b.Allow("roadsurfer"))
	require.True(t, b.Allow("indie-campers"))
}
