package morph

import "math"

// Range is the native numeric range a renderer morph accepts.
type Range struct {
	Min float64
	Max float64
}

func (r Range) degenerate() bool {
	return r.Max == r.Min
}

// ToNative maps a backend 0-100 value into r. A degenerate range yields its midpoint.
func ToNative(backendValue float64, r Range) float64 {
	if r.degenerate() {
		return (r.Min + r.Max) / 2 //nolint:mnd // midpoint
	}
	return r.Min + (backendValue/MaxValue)*(r.Max-r.Min)
}

// ToBackend maps a native value in r onto the backend 0-100 scale. A degenerate range yields the neutral 50.
func ToBackend(nativeValue float64, r Range) int {
	if r.degenerate() {
		return int(NeutralValue)
	}
	return int(math.Round(MaxValue * (nativeValue - r.Min) / (r.Max - r.Min)))
}

// Clamp bounds a slider value to the backend scale.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return NeutralValue
	}
	return math.Max(MinValue, math.Min(MaxValue, v))
}
