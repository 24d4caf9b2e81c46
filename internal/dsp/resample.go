package dsp

import "math"

// resampleLen returns the output length for resampling n samples from rate
// `from` to rate `to`.
func resampleLen(n int, from, to float64) int {
	if n == 0 {
		return 0
	}
	if from == to {
		return n
	}
	out := int(math.Round(float64(n) * to / from))
	if out < 1 {
		out = 1
	}
	return out
}

// Resample converts real audio from one sample rate to another by linear
// interpolation. The caller is expected to have lowpassed the input below
// half the target rate already, which keeps interpolation alias free for the
// rates used here. Output length is a pure function of input length.
func Resample(x []float32, from, to float64) []float32 {
	if len(x) == 0 {
		return nil
	}

	if from == to {
		out := make([]float32, len(x))
		copy(out, x)
		return out
	}

	n := resampleLen(len(x), from, to)
	out := make([]float32, n)
	if n == 1 || len(x) == 1 {
		for i := range out {
			out[i] = x[0]
		}
		return out
	}

	step := float64(len(x)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = x[j] + (x[j+1]-x[j])*frac
	}
	return out
}
