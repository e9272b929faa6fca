package enhance

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicecap/internal/conf"
)

func TestHighPassRemovesDC(t *testing.T) {
	cfg := bypassConfig()
	cfg.HighPass.Enabled = true
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	dc := make([]float32, frameLen)
	for i := range dc {
		dc[i] = 0.5
	}

	var out []float32
	for range 50 {
		out = process(t, e, dc)
	}
	for _, v := range out {
		require.InDelta(t, 0, v, 1e-3)
	}
}

func TestHighPassKeepsVoiceBand(t *testing.T) {
	cfg := bypassConfig()
	cfg.HighPass.Enabled = true
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	var in, out []float32
	for frame := range 20 {
		in = sine(1000, 0.5, frame)
		out = process(t, e, in)
	}
	assert.InDelta(t, rmsDB(in), rmsDB(out), 0.5)
}

func TestEchoCancellerPassesThroughWithoutFarEnd(t *testing.T) {
	cfg := bypassConfig()
	cfg.EchoCancel.Enabled = true
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	in := sine(300, 0.4, 0)
	assert.Equal(t, in, process(t, e, in))
}

func TestEchoCancellerConverges(t *testing.T) {
	const delay = 48

	cfg := bypassConfig()
	cfg.EchoCancel.Enabled = true
	cfg.EchoCancel.Taps = 64
	cfg.EchoCancel.Delay = delay
	cfg.EchoCancel.Step = 0.5
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	r := rand.New(rand.NewPCG(1, 2))
	var far []float32
	var inEnergy, outEnergy float64

	const frames = 200
	for frame := range frames {
		farFrame := whiteNoise(r, 0.3)
		far = append(far, farFrame...)
		e.FeedFarEnd(farFrame)

		// the microphone hears the far end delayed and attenuated
		near := make([]float32, frameLen)
		for i := range near {
			n := frame*frameLen + i - delay
			if n >= 0 {
				near[i] = 0.6 * far[n]
			}
		}

		out := process(t, e, near)
		if frame >= frames-20 {
			inEnergy += energy(near)
			outEnergy += energy(out)
		}
	}

	assert.Less(t, outEnergy, 0.01*inEnergy, "echo should be attenuated by more than 20 dB")
}

func TestNoiseSuppressionReducesStationaryNoise(t *testing.T) {
	residual := map[string]float64{}

	for _, level := range []string{conf.NoiseLevelLow, conf.NoiseLevelHigh, conf.NoiseLevelVeryHigh} {
		cfg := bypassConfig()
		cfg.NoiseSuppression.Enabled = true
		cfg.NoiseSuppression.Level = level
		e, err := NewEngine(cfg)
		require.NoError(t, err)

		r := rand.New(rand.NewPCG(7, 7))
		var inEnergy, outEnergy float64
		for frame := range 150 {
			in := whiteNoise(r, 0.1)
			out := process(t, e, in)
			if frame >= 50 {
				inEnergy += energy(in)
				outEnergy += energy(out)
			}
		}
		residual[level] = outEnergy / inEnergy
	}

	assert.Less(t, residual[conf.NoiseLevelLow], 0.7)
	assert.Less(t, residual[conf.NoiseLevelHigh], residual[conf.NoiseLevelLow])
	assert.Less(t, residual[conf.NoiseLevelVeryHigh], residual[conf.NoiseLevelHigh])
}

func TestNoiseSuppressionSilenceStaysSilent(t *testing.T) {
	cfg := bypassConfig()
	cfg.NoiseSuppression.Enabled = true
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	for range 5 {
		out := process(t, e, make([]float32, frameLen))
		for _, v := range out {
			require.False(t, math.IsNaN(float64(v)))
			require.Zero(t, v)
		}
	}
}

func TestGainControlRaisesQuietSpeech(t *testing.T) {
	cfg := bypassConfig()
	cfg.GainControl.Enabled = true
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	// -40 dBFS RMS sine
	amplitude := math.Sqrt2 * dbToLinear(-40)
	var out []float32
	for frame := range 400 {
		out = process(t, e, sine(500, amplitude, frame))
	}
	assert.InDelta(t, cfg.GainControl.TargetLevel, rmsDB(out), 1.0)
}

func TestGainControlLimitsLoudInput(t *testing.T) {
	cfg := bypassConfig()
	cfg.GainControl.Enabled = true
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	var out []float32
	for frame := range 50 {
		out = process(t, e, sine(500, 0.99, frame))
	}
	assert.InDelta(t, cfg.GainControl.TargetLevel, rmsDB(out), 1.0)
	for _, v := range out {
		require.LessOrEqual(t, math.Abs(float64(v)), 1.0)
	}
}

func TestGainControlHoldsOnSilence(t *testing.T) {
	g := newGainControl(-18, 30)
	frame := make([]float32, frameLen)
	g.process(frame)

	assert.InDelta(t, 1.0, g.gain, 0)
	for _, v := range frame {
		require.Zero(t, v)
	}
}
