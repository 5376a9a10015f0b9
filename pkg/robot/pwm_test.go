package robot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapThrottle(t *testing.T) {
	tests := []struct {
		v        float64
		expected int
	}{
		{0.0, 1100},  // zero -> min
		{1.0, 1900},  // full -> max
		{0.25, 1300}, // quarter
		{0.5, 1500},  // half
		{-1.0, 1100}, // clamped low
		{3.0, 1900},  // clamped high
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MapThrottle(tt.v, 1100, 1900), "MapThrottle(%v)", tt.v)
	}
}

func TestMapSteering(t *testing.T) {
	tests := []struct {
		v        float64
		expected int
	}{
		{-1.0, 1100}, // full left -> min
		{1.0, 1900},  // full right -> max
		{0.0, 1500},  // neutral
		{-0.5, 1300},
		{0.7, 1780},
		{-4.0, 1100}, // clamped low
		{2.0, 1900},  // clamped high
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MapSteering(tt.v, 1100, 1900), "MapSteering(%v)", tt.v)
	}
}

func TestMapClampEquivalence(t *testing.T) {
	assert.Equal(t, MapThrottle(0, 0, 100), MapThrottle(-1, 0, 100))
	assert.Equal(t, MapSteering(1, -50, 50), MapSteering(2, -50, 50))
	assert.Equal(t, 0, MapSteering(0, -50, 50))
}

func TestMapNaN(t *testing.T) {
	assert.Equal(t, 1100, MapThrottle(math.NaN(), 1100, 1900))
	assert.Equal(t, 1500, MapSteering(math.NaN(), 1100, 1900))
}

func TestMapMonotonicAndBounded(t *testing.T) {
	ranges := [][2]int{{1100, 1900}, {1500, 1900}, {0, 100}, {-50, 50}, {1000, 1000}, {1000, 2001}}

	for _, r := range ranges {
		lo, hi := r[0], r[1]

		prev := math.MinInt
		for v := -1.5; v <= 1.5; v += 0.01 {
			got := MapThrottle(v, lo, hi)
			if got < prev {
				t.Errorf("MapThrottle not monotonic on [%d,%d] at %f: %d < %d", lo, hi, v, got, prev)
			}
			if got < lo || got > hi {
				t.Errorf("MapThrottle(%f, %d, %d) = %d out of range", v, lo, hi, got)
			}
			prev = got
		}

		prev = math.MinInt
		for v := -2.0; v <= 2.0; v += 0.01 {
			got := MapSteering(v, lo, hi)
			if got < prev {
				t.Errorf("MapSteering not monotonic on [%d,%d] at %f: %d < %d", lo, hi, v, got, prev)
			}
			if got < lo || got > hi {
				t.Errorf("MapSteering(%f, %d, %d) = %d out of range", v, lo, hi, got)
			}
			prev = got
		}

		assert.Equal(t, lo, MapThrottle(0, lo, hi))
		assert.Equal(t, hi, MapThrottle(1, lo, hi))
	}
}

func TestChannelSpec_Map(t *testing.T) {
	spec := ChannelSpec{Channel: 3, MinPWM: 1500, MaxPWM: 1900}

	assert.Equal(t, 1600, spec.Throttle(0.25))
	assert.Equal(t, 1700, spec.Steering(0))
}
