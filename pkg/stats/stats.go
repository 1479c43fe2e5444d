// Package stats keeps running statistics over an unbounded stream of readings
// in constant memory.
package stats

import (
	"math"

	"github.com/chewxy/math32"
)

// Summary is a point-in-time copy of the accumulator.
type Summary struct {
	Mean   float64
	Min    float32
	Max    float32
	Latest float32
	Count  int64
}

// Running accumulates mean, min, max and latest value.
//
// When adding a value would overflow the sum or the counter, the accumulator
// starts a new epoch: previous history is dropped and the value becomes its
// first sample.
type Running struct {
	sum    float64
	count  int64
	min    float32
	max    float32
	latest float32
}

// New returns an empty accumulator.
func New() *Running {
	r := &Running{}
	r.Reset()
	return r
}

// Reset drops all accumulated values.
func (r *Running) Reset() {
	r.sum = 0
	r.count = 0
	r.min = math32.Inf(1)
	r.max = math32.Inf(-1)
	r.latest = 0
}

// Add incorporates value.
func (r *Running) Add(value float32) {
	if r.sum >= math.MaxFloat64-float64(value) || r.count >= math.MaxInt64-1 {
		r.Reset()
	}

	r.sum += float64(value)
	r.count++
	r.latest = value

	if value > r.max {
		r.max = value
	}
	if value < r.min {
		r.min = value
	}
}

// Mean returns the average of the current epoch. With no samples it returns
// the latest value rather than zero.
func (r *Running) Mean() float64 {
	if r.count != 0 {
		return r.sum / float64(r.count)
	}
	return float64(r.latest)
}

// Min returns the smallest value of the current epoch, +Inf when empty.
func (r *Running) Min() float32 {
	return r.min
}

// Max returns the largest value of the current epoch, -Inf when empty.
func (r *Running) Max() float32 {
	return r.max
}

// Latest returns the most recently added value.
func (r *Running) Latest() float32 {
	return r.latest
}

// Count returns the number of values in the current epoch.
func (r *Running) Count() int64 {
	return r.count
}

// Snapshot copies the current state.
func (r *Running) Snapshot() Summary {
	return Summary{
		Mean:   r.Mean(),
		Min:    r.min,
		Max:    r.max,
		Latest: r.latest,
		Count:  r.count,
	}
}

// Empty reports whether the summary was taken before any value was added.
func (s Summary) Empty() bool {
	return s.Count == 0
}
