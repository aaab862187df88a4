package misc

import (
	"math"
	"math/rand"
	"time"
)

var rnd = rand.New(rand.NewSource(time.Now().UnixNano()))

// Sleeper sleeps for a base duration with a percentage of jitter applied,
// so that several tasks started at the same time don't all wake in
// lockstep forever (thundering-herd avoidance for the supervised task
// loops in internal/tasks).
type Sleeper struct {
	base      time.Duration
	jitterPct int
}

// NewSleeper returns a Sleeper that sleeps base, plus or minus up to
// jitterPct percent.
func NewSleeper(base time.Duration, jitterPct int) Sleeper {
	return Sleeper{base: base, jitterPct: jitterPct}
}

func (s Sleeper) Sleep() {
	time.Sleep(s.Duration())
}

// Duration computes the (randomized) duration for one sleep without
// actually sleeping, so tests can assert bounds.
func (s Sleeper) Duration() time.Duration {
	if s.jitterPct <= 0 {
		return s.base
	}
	jitter := float64(s.base) * (rnd.Float64() * (float64(s.jitterPct) / 100))
	if rnd.Intn(2) == 0 {
		jitter = -jitter
	}
	d := time.Duration(math.Round(float64(s.base) + jitter))
	if d < 0 {
		d = 0
	}
	return d
}
