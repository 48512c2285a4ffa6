package utils

import (
	"math"
	"strconv"

	"golang.org/x/exp/constraints"
)

// Float32Round rounds v to float32 precision and widens it back through the
// shortest decimal form, so values stored as float32 compare equal after reading.
func Float32Round(v float64) float64 {
	f := float32(v)
	if math.IsInf(float64(f), 0) || math.IsNaN(float64(f)) {
		return float64(f)
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return r
}

func Clamp[T constraints.Ordered](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func AlmostEqual[T constraints.Float](a, b, epsilon T) bool {
	d := a - b
	return d <= epsilon && -d <= epsilon
}

func ConvertFloats[To, From constraints.Float](in []From) []To {
	out := make([]To, len(in))
	for i, v := range in {
		out[i] = To(v)
	}
	return out
}
