package enhance

import "math"

// butterworthQ gives a maximally flat passband
const butterworthQ = math.Sqrt2 / 2

// biquad is a second order IIR section from the RBJ audio EQ cookbook,
// with coefficients normalised by a0.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	in1, in2           float64
	out1, out2         float64
}

func newHighPass(sampleRate, cutoff float64) *biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cos := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * butterworthQ)
	a0 := 1 + alpha

	return &biquad{
		b0: (1 + cos) / 2 / a0,
		b1: -(1 + cos) / a0,
		b2: (1 + cos) / 2 / a0,
		a1: -2 * cos / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *biquad) process(frame []float32) {
	for i, x := range frame {
		in := float64(x)
		out := f.b0*in + f.b1*f.in1 + f.b2*f.in2 - f.a1*f.out1 - f.a2*f.out2

		f.in2, f.in1 = f.in1, in
		f.out2, f.out1 = f.out1, out

		frame[i] = float32(out)
	}
}
