package enhance

import (
	"math"

	"github.com/tphakala/simd/f32"
)

const (
	// silenceLevel is the RMS below which the gain is held, -60 dBFS
	silenceLevel = 1e-3

	// attack and release are per-frame smoothing factors for falling and
	// rising gain
	attack  = 0.5
	release = 0.05
)

// gainControl scales frames toward a target RMS level
type gainControl struct {
	target  float64
	minGain float64
	maxGain float64
	gain    float64
}

func newGainControl(targetDB, maxGainDB float64) *gainControl {
	return &gainControl{
		target:  dbToLinear(targetDB),
		minGain: dbToLinear(-maxGainDB),
		maxGain: dbToLinear(maxGainDB),
		gain:    1,
	}
}

func (g *gainControl) process(frame []float32) {
	if len(frame) == 0 {
		return
	}

	rms := math.Sqrt(float64(f32.DotProductUnsafe(frame, frame)) / float64(len(frame)))
	if rms >= silenceLevel {
		desired := math.Min(math.Max(g.target/rms, g.minGain), g.maxGain)
		alpha := release
		if desired < g.gain {
			alpha = attack
		}
		g.gain += alpha * (desired - g.gain)
	}

	f32.Scale(frame, frame, float32(g.gain))
	for i, v := range frame {
		switch {
		case v > 1:
			frame[i] = 1
		case v < -1:
			frame[i] = -1
		}
	}
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
