package pending

import (
	"sync"
	"time"
)

const (
	DefMaxCommitBurst   = 4
	DefCommitBurstDelay = 10 * time.Minute
)

// BurstLimiter limits the number of lands within a sliding time window.
type BurstLimiter struct {
	maxBurst int
	window   time.Duration
	now      func() time.Time

	lock   sync.Mutex
	landed []time.Time
}

// NewBurstLimiter returns a limiter that allows at most maxBurst lands within
// window. now is used as clock, if it is nil time.Now is used.
func NewBurstLimiter(maxBurst int, window time.Duration, now func() time.Time) *BurstLimiter {
	if maxBurst < 1 {
		maxBurst = DefMaxCommitBurst
	}

	if window <= 0 {
		window = DefCommitBurstDelay
	}

	if now == nil {
		now = time.Now
	}

	return &BurstLimiter{
		maxBurst: maxBurst,
		window:   window,
		now:      now,
	}
}

func (l *BurstLimiter) expire(now time.Time) {
	i := 0
	for ; i < len(l.landed); i++ {
		if now.Sub(l.landed[i]) < l.window {
			break
		}
	}

	l.landed = l.landed[i:]
}

// Wait returns how long it takes until another land is allowed. It is 0
// when a land is allowed now.
func (l *BurstLimiter) Wait() time.Duration {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	l.expire(now)

	if len(l.landed) < l.maxBurst {
		return 0
	}

	return l.landed[0].Add(l.window).Sub(now)
}

// Allow returns true if another land is allowed now.
func (l *BurstLimiter) Allow() bool {
	return l.Wait() == 0
}

// Record records a land that happened now.
func (l *BurstLimiter) Record() {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	l.expire(now)
	l.landed = append(l.landed, now)
}
