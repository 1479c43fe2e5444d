package history

import (
	"math"
	"time"
)

// NoData is returned by Mean when the ring holds no samples.
const NoData = float32(math.MinInt32)

// Sample is a single slot of the ring.
type Sample struct {
	Value     float32
	Timestamp time.Duration // Clock reading at insert time
	Present   bool          // False for slots that were never written
}

// Ring is a fixed-capacity circular buffer of samples.
// Besides the retained samples it keeps the all-time extremes and the number
// of inserts ever made, neither of which is affected by eviction.
//
// Ring is not safe for concurrent use.
type Ring struct {
	samples []Sample
	n       int // next slot to overwrite
	max     Sample
	min     Sample
	total   int64
}

// New creates a ring holding at most capacity samples.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{
		samples: make([]Sample, capacity),
	}
}

// Add stores value in the next slot and returns the index of the slot that
// will be written by the following call.
func (r *Ring) Add(value float32, ts time.Duration) int {
	s := Sample{Value: value, Timestamp: ts, Present: true}
	r.samples[r.n] = s

	if !r.max.Present || value > r.max.Value {
		r.max = s
	}
	if !r.min.Present || value < r.min.Value {
		r.min = s
	}

	r.n = (r.n + 1) % len(r.samples)

	// total wraps to 1, not 0, so a ring that has seen inserts never reports none.
	if r.total == math.MaxInt64 {
		r.total = 1
	} else {
		r.total++
	}

	return r.n
}

// Len returns the number of present slots.
func (r *Ring) Len() int {
	count := 0
	for i := range r.samples {
		if r.samples[i].Present {
			count++
		}
	}
	return count
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.samples)
}

// Total returns the number of inserts since construction.
func (r *Ring) Total() int64 {
	return r.total
}

// Max returns the largest value ever inserted.
func (r *Ring) Max() Sample {
	return r.max
}

// Min returns the smallest value ever inserted.
func (r *Ring) Min() Sample {
	return r.min
}

// Latest returns the most recently written slot.
func (r *Ring) Latest() Sample {
	idx := (r.n - 1 + len(r.samples)) % len(r.samples)
	return r.samples[idx]
}

// Mean returns the mean of the retained samples, or NoData if there are none.
func (r *Ring) Mean() float32 {
	var (
		sum   float32
		count int
	)
	for i := range r.samples {
		if r.samples[i].Present {
			sum += r.samples[i].Value
			count++
		}
	}
	if count == 0 {
		return NoData
	}
	return sum / float32(count)
}

// Values returns the retained samples ordered oldest first.
func (r *Ring) Values() []Sample {
	result := make([]Sample, 0, len(r.samples))
	for i := range r.samples {
		s := r.samples[(r.n+i)%len(r.samples)]
		if s.Present {
			result = append(result, s)
		}
	}
	return result
}
