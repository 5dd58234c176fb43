package pending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBurstLimiter(t *testing.T) {
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewBurstLimiter(2, 10*time.Minute, func() time.Time { return now })

	assert.True(t, l.Allow())
	l.Record()

	now = now.Add(time.Minute)
	assert.True(t, l.Allow())
	l.Record()

	assert.False(t, l.Allow())
	assert.Equal(t, 9*time.Minute, l.Wait())

	now = now.Add(9 * time.Minute)
	assert.True(t, l.Allow())
	l.Record()
	assert.False(t, l.Allow())
	assert.Equal(t, time.Minute, l.Wait())
}

// TestBurstLimiterWindowInvariant lands as often as allowed and checks that
// no window of the configured length contains more lands than allowed.
func TestBurstLimiterWindowInvariant(t *testing.T) {
	const maxBurst = DefMaxCommitBurst
	window := DefCommitBurstDelay

	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewBurstLimiter(maxBurst, window, func() time.Time { return now })

	var lands []time.Time
	for i := 0; i < 500; i++ {
		// several commits become ready at the same time
		for j := 0; j < 3; j++ {
			if l.Allow() {
				l.Record()
				lands = append(lands, now)
			}
		}

		now = now.Add(47 * time.Second)
	}

	assert.Greater(t, len(lands), maxBurst)

	for i := range lands {
		var inWindow int
		for j := i; j < len(lands) && lands[j].Sub(lands[i]) < window; j++ {
			inWindow++
		}

		assert.LessOrEqual(t, inWindow, maxBurst, "window starting at %s", lands[i])
	}
}

func TestBurstLimiterDefaults(t *testing.T) {
	l := NewBurstLimiter(0, 0, nil)

	for i := 0; i < DefMaxCommitBurst; i++ {
		assert.True(t, l.Allow())
		l.Record()
	}

	assert.False(t, l.Allow())
}
