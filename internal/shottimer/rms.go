package shottimer

import "math"

// RMS returns the root-mean-square level of unsigned 8-bit PCM centred at
// 128. The result lies on a 0-127 scale.
func RMS(buf []byte) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, b := range buf {
		v := float64(b) - 128
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}
