package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSamples(n int) []Sample {
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = Sample{
			Value:     float32(i),
			Timestamp: time.Duration(i) * time.Second,
			Present:   true,
		}
	}
	return samples
}

func TestDownsample_NoDownsampling(t *testing.T) {
	samples := makeSamples(3)

	result := Downsample(nil, samples, 10)
	require.Len(t, result, 3)
	assert.Equal(t, samples, result)

	dst := make([]Sample, 0, 10)
	result = Downsample(dst, samples, 10)
	require.Len(t, result, 3)
	assert.Equal(t, samples, result)
	assert.Equal(t, cap(dst), cap(result))
}

func TestDownsample_WithDownsampling(t *testing.T) {
	samples := makeSamples(100)

	dst := make([]Sample, 0, 20)
	result := Downsample(dst, samples, 10)

	require.Len(t, result, 10)
	assert.Equal(t, cap(dst), cap(result))
	assert.Equal(t, samples[0], result[0])
	assert.Equal(t, samples[99], result[9])

	for i := 1; i < len(result); i++ {
		assert.Greater(t, result[i].Timestamp, result[i-1].Timestamp)
	}
}

func TestDownsample_SmallDst(t *testing.T) {
	samples := makeSamples(50)

	dst := make([]Sample, 0, 2)
	result := Downsample(dst, samples, 5)

	require.Len(t, result, 5)
	assert.GreaterOrEqual(t, cap(result), 5)
}

func TestDownsample_ZeroPoints(t *testing.T) {
	result := Downsample(nil, makeSamples(5), 0)
	assert.Empty(t, result)
}
