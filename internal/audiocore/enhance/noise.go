package enhance

import (
	"math"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/voicecap/internal/conf"
)

// suppression holds the strength of one noise suppression level
type suppression struct {
	overSubtract float64 // noise power multiplier
	floor        float64 // minimum per-bin gain
}

var suppressionLevels = map[string]suppression{
	conf.NoiseLevelLow:      {overSubtract: 1.0, floor: 0.5},    // -6 dB
	conf.NoiseLevelModerate: {overSubtract: 1.5, floor: 0.25},   // -12 dB
	conf.NoiseLevelHigh:     {overSubtract: 2.0, floor: 0.125},  // -18 dB
	conf.NoiseLevelVeryHigh: {overSubtract: 2.5, floor: 0.0625}, // -24 dB
}

const (
	// warmupFrames seed the noise estimate with a plain average
	warmupFrames = 20

	// noiseAdapt is the averaging factor for bins judged to hold only noise
	noiseAdapt = 0.05
	// speechRatio marks bins louder than this multiple of the estimate as speech
	speechRatio = 3.0
	// noiseRise lets the estimate creep up while every bin looks like speech
	noiseRise = 0.005
	// gainSmoothing blends the previous frame's gains to reduce musical noise
	gainSmoothing = 0.3

	minPower = 1e-12
)

// noiseSuppressor is a spectral subtraction suppressor. Each frame is joined
// with the previous one, windowed with a square-root Hann window and
// transformed; the output is overlap-added, so it lags the input by one frame.
type noiseSuppressor struct {
	level    suppression
	frameLen int
	fftSize  int
	fft      *fourier.FFT
	scale    float64 // 1/fftSize, gonum does not normalise the inverse

	window  []float64
	block   []float64
	coeffs  []complex128
	result  []float64
	overlap []float64

	noise  []float64
	gains  []float64
	frames int
}

func newNoiseSuppressor(frameLen int, level string) (*noiseSuppressor, error) {
	s, ok := suppressionLevels[level]
	if !ok {
		return nil, newConfigError("noise_suppression_level", level)
	}

	fftSize := 2 * frameLen
	bins := fftSize/2 + 1

	ns := &noiseSuppressor{
		level:    s,
		frameLen: frameLen,
		fftSize:  fftSize,
		fft:      fourier.NewFFT(fftSize),
		scale:    1 / float64(fftSize),
		window:   make([]float64, fftSize),
		block:    make([]float64, fftSize),
		coeffs:   make([]complex128, bins),
		result:   make([]float64, fftSize),
		overlap:  make([]float64, frameLen),
		noise:    make([]float64, bins),
		gains:    make([]float64, bins),
	}

	// periodic Hann squared sums to one at 50% overlap
	for i := range ns.window {
		ns.window[i] = math.Sqrt(0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize)))
	}
	for i := range ns.gains {
		ns.gains[i] = 1
	}
	return ns, nil
}

func (ns *noiseSuppressor) process(frame []float32) {
	// slide the analysis block: previous frame, then this one
	copy(ns.block, ns.block[ns.frameLen:])
	for i, v := range frame[:ns.frameLen] {
		ns.block[ns.frameLen+i] = float64(v)
	}

	windowed := ns.result
	for i, v := range ns.block {
		windowed[i] = v * ns.window[i]
	}
	ns.coeffs = ns.fft.Coefficients(ns.coeffs, windowed)

	ns.frames++
	for k, c := range ns.coeffs {
		power := real(c)*real(c) + imag(c)*imag(c)
		ns.updateNoise(k, power)

		gain := ns.level.floor
		if power > minPower {
			gain = math.Max(1-ns.level.overSubtract*ns.noise[k]/power, ns.level.floor)
		}
		gain = gainSmoothing*ns.gains[k] + (1-gainSmoothing)*gain
		ns.gains[k] = gain
		ns.coeffs[k] = c * complex(gain, 0)
	}

	ns.result = ns.fft.Sequence(ns.result, ns.coeffs)
	f64.Scale(ns.result, ns.result, ns.scale)

	for i := range ns.frameLen {
		frame[i] = float32(ns.overlap[i] + ns.result[i]*ns.window[i])
		ns.overlap[i] = ns.result[ns.frameLen+i] * ns.window[ns.frameLen+i]
	}
}

// updateNoise tracks the noise floor of bin k. Speech bins only nudge the
// estimate up, so talking does not raise it quickly.
func (ns *noiseSuppressor) updateNoise(k int, power float64) {
	switch {
	case ns.frames <= warmupFrames:
		ns.noise[k] += (power - ns.noise[k]) / float64(ns.frames)
	case power < speechRatio*ns.noise[k]:
		ns.noise[k] += noiseAdapt * (power - ns.noise[k])
	default:
		ns.noise[k] = math.Max(ns.noise[k]*(1+noiseRise), minPower)
	}
}
