package tacho

import "math"

// Mean returns the arithmetic mean of samples, or 0 for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// StdDev returns the population standard deviation of samples around mean.
// One sample or fewer gives 0.
func StdDev(samples []float64, mean float64) float64 {
	if len(samples) <= 1 {
		return 0
	}
	var sumSq float64
	for _, v := range samples {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

// Threshold returns round(mean + factor*stddev) clamped to 0..255.
func Threshold(mean, stddev, factor float64) uint8 {
	v := math.Round(mean + factor*stddev)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxUint8:
		return math.MaxUint8
	}
	return uint8(v)
}
