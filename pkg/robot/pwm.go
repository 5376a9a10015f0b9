package robot

import "math"

// MapThrottle converts a normalized throttle in the range [0, 1] to a pulse
// width in [min, max]. Values outside the range are clamped.
func MapThrottle(v float64, min, max int) int {
	v = clamp(v, 0, 1)
	return int(math.Round(float64(min) + float64(max-min)*v))
}

// MapSteering converts a normalized steering value in the range [-1, 1] to a
// pulse width in [min, max], with 0 mapping to the midpoint. Values outside
// the range are clamped.
func MapSteering(v float64, min, max int) int {
	v = clamp(v, -1, 1)
	neutral := float64(min+max) / 2
	half := float64(max-min) / 2
	return int(math.Round(neutral + half*v))
}

// clamp bounds v to [lo, hi]. NaN counts as zero.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Throttle maps a normalized throttle onto this channel's pulse range.
func (c ChannelSpec) Throttle(v float64) int {
	return MapThrottle(v, c.MinPWM, c.MaxPWM)
}

// Steering maps a normalized steering value onto this channel's pulse range.
func (c ChannelSpec) Steering(v float64) int {
	return MapSteering(v, c.MinPWM, c.MaxPWM)
}
