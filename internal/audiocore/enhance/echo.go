package enhance

import (
	"sync"

	"github.com/tphakala/simd/f32"
)

const (
	// DefaultDelay is the bulk delay between playback and the echo arriving
	// at the microphone, 40 ms at 48 kHz
	DefaultDelay = 1920

	// DefaultTaps is the adaptive filter length, 10 ms at 48 kHz
	DefaultTaps = 480

	// DefaultStep is the NLMS step size, 0 < mu < 2
	DefaultStep = 0.1

	// minReferencePower skips adaptation while the far end is silent
	minReferencePower = 1e-10
)

// echoCanceller is a normalised least mean squares echo canceller. The far
// end is written by FeedFarEnd and copied out under the lock, adaptation runs
// without it.
type echoCanceller struct {
	mu       sync.Mutex
	farBuf   []float32
	farHead  int
	bufLen   int
	delay    int
	frameLen int

	// weights are stored newest-last so each output sample is one dot
	// product against a contiguous reference window
	weights []float32
	taps    int
	step    float32
	ref     []float32
}

func newEchoCanceller(frameLen, taps, delay int, step float64) (*echoCanceller, error) {
	switch {
	case taps <= 0:
		return nil, newConfigError("echocancel_taps", taps)
	case delay < 0:
		return nil, newConfigError("echocancel_delay", delay)
	case step <= 0 || step >= 2:
		return nil, newConfigError("echocancel_step", step)
	}

	bufLen := frameLen + delay + taps
	return &echoCanceller{
		farBuf:   make([]float32, bufLen),
		bufLen:   bufLen,
		delay:    delay,
		frameLen: frameLen,
		weights:  make([]float32, taps),
		taps:     taps,
		step:     float32(step),
		ref:      make([]float32, frameLen+taps-1),
	}, nil
}

func (a *echoCanceller) feedFarEnd(frame []float32) {
	a.mu.Lock()
	for _, s := range frame {
		a.farBuf[a.farHead] = s
		a.farHead = (a.farHead + 1) % a.bufLen
	}
	a.mu.Unlock()
}

func (a *echoCanceller) process(frame []float32) {
	a.mu.Lock()
	start := a.farHead - a.frameLen - a.delay - a.taps + 1
	for j := range a.ref {
		idx := ((start+j)%a.bufLen + a.bufLen) % a.bufLen
		a.ref[j] = a.farBuf[idx]
	}
	a.mu.Unlock()

	n := min(len(frame), a.frameLen)
	for i := range n {
		window := a.ref[i : i+a.taps]

		echo := f32.DotProductUnsafe(a.weights, window)
		power := f32.DotProductUnsafe(window, window)
		e := frame[i] - echo

		if power > minReferencePower {
			mu := a.step * e / power
			for k, x := range window {
				a.weights[k] += mu * x
			}
		}
		frame[i] = e
	}
}
