// Package backoff implements a jittered exponential backoff timer used by
// the Socket Manager's reconnection loop.
package backoff

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
)

const maxAttempts = 63 // guards math.Pow from overflowing

// Backoff computes successive, jittered, exponentially-growing delays.
// All fields are stored atomically so Duration/Reset may be called from the
// serialized scope while options are adjusted from user code.
type Backoff struct {
	min      atomic.Uint64
	max      atomic.Uint64
	factor   atomic.Uint64
	jitter   atomic.Uint64
	attempts atomic.Uint64
}

// New returns a Backoff with the given minimum/maximum delay (ms) and
// growth factor. max is raised to min if it is below it, both here and in
// later SetMin/SetMax calls; factor is raised to 1 if it is below it.
func New(minMs, maxMs float64, factor float64) *Backoff {
	b := &Backoff{}
	storeFloat(&b.min, minMs)
	storeFloat(&b.max, math.Max(maxMs, minMs))
	storeFloat(&b.factor, math.Max(factor, 1))
	return b
}

// Attempts returns the number of Duration calls since construction or the
// last Reset.
func (b *Backoff) Attempts() uint64 { return b.attempts.Load() }

// Duration returns the next backoff delay in milliseconds and increments
// the attempt counter. Without jitter it is min*factor^attempts clamped to
// [min, max]; with jitter in (0,1) a uniformly random offset in
// [-jitter*duration, +jitter*duration] is applied before the final clamp.
func (b *Backoff) Duration() int64 {
	attempt := b.attempts.Add(1) - 1
	if attempt > maxAttempts {
		attempt = maxAttempts
	}

	lo := loadFloat(&b.min)
	hi := loadFloat(&b.max)
	factor := loadFloat(&b.factor)
	jitter := loadFloat(&b.jitter)

	d := lo * math.Pow(factor, float64(attempt))
	d = clamp(d, lo, hi)

	if jitter > 0 {
		offset := jitter * d * (rand.Float64()*2 - 1)
		d = clamp(d+offset, lo, hi)
	}

	return int64(d)
}

// Reset zeroes the attempt counter; the next Duration call resumes from min.
func (b *Backoff) Reset() { b.attempts.Store(0) }

// SetMin sets the minimum delay, coercing max upward if necessary.
func (b *Backoff) SetMin(ms float64) {
	storeFloat(&b.min, ms)
	if ms > b.GetMax() {
		storeFloat(&b.max, ms)
	}
}

// SetMax sets the maximum delay, coercing it up to the current min if the
// caller asks for something smaller (spec invariant: 0 <= min <= max).
func (b *Backoff) SetMax(ms float64) {
	storeFloat(&b.max, math.Max(ms, b.GetMin()))
}

// SetFactor sets the exponential growth factor; values <= 1 are rejected.
func (b *Backoff) SetFactor(factor float64) error {
	if factor <= 1 {
		return errors.New("backoff: factor must be > 1")
	}
	storeFloat(&b.factor, factor)
	return nil
}

// SetJitter sets the jitter fraction. Values outside [0,1) are rejected with
// an error, per spec.
func (b *Backoff) SetJitter(jitter float64) error {
	if jitter < 0 || jitter >= 1 {
		return errors.New("backoff: jitter must be in [0, 1)")
	}
	storeFloat(&b.jitter, jitter)
	return nil
}

func (b *Backoff) GetMin() float64    { return loadFloat(&b.min) }
func (b *Backoff) GetMax() float64    { return loadFloat(&b.max) }
func (b *Backoff) GetFactor() float64 { return loadFloat(&b.factor) }
func (b *Backoff) GetJitter() float64 { return loadFloat(&b.jitter) }

func storeFloat(target *atomic.Uint64, v float64) { target.Store(math.Float64bits(v)) }
func loadFloat(source *atomic.Uint64) float64      { return math.Float64frombits(source.Load()) }

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return hi
	}
	return math.Max(lo, math.Min(v, hi))
}
