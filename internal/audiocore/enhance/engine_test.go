package enhance

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/conf"
	"github.com/tphakala/voicecap/internal/errors"
)

var format = audiocore.StreamFormat{SampleRate: conf.SampleRate, Channels: 1}

const frameLen = conf.FrameSize

// bypassConfig has every stage disabled
func bypassConfig() Config {
	cfg := DefaultConfig()
	cfg.HighPass.Enabled = false
	cfg.EchoCancel.Enabled = false
	cfg.NoiseSuppression.Enabled = false
	cfg.GainControl.Enabled = false
	return cfg
}

func process(t *testing.T, e *Engine, in []float32) []float32 {
	t.Helper()
	out := make([]float32, len(in))
	require.NoError(t, e.ProcessStream([][]float32{in}, format, format, [][]float32{out}))
	return out
}

func sine(freq, amplitude float64, frame int) []float32 {
	out := make([]float32, frameLen)
	for i := range out {
		n := float64(frame*frameLen + i)
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*n/conf.SampleRate))
	}
	return out
}

func whiteNoise(r *rand.Rand, amplitude float32) []float32 {
	out := make([]float32, frameLen)
	for i := range out {
		out[i] = amplitude * (2*r.Float32() - 1)
	}
	return out
}

func energy(frame []float32) float64 {
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return sum
}

func rmsDB(frame []float32) float64 {
	return 10 * math.Log10(energy(frame)/float64(len(frame)))
}

func TestDefaultEngine(t *testing.T) {
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, e.Stages())

	in := sine(440, 0.3, 0)
	original := append([]float32(nil), in...)
	out := process(t, e, in)

	assert.Equal(t, original, in, "input must not be modified")
	assert.Len(t, out, frameLen)
}

func TestBypassIsIdentity(t *testing.T) {
	e, err := NewEngine(bypassConfig())
	require.NoError(t, err)
	assert.Zero(t, e.Stages())

	in := sine(1000, 0.5, 3)
	assert.Equal(t, in, process(t, e, in))
}

func TestProcessStreamValidation(t *testing.T) {
	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	frame := make([]float32, frameLen)
	stereo := audiocore.StreamFormat{SampleRate: conf.SampleRate, Channels: 2}
	slow := audiocore.StreamFormat{SampleRate: 16000, Channels: 1}

	tests := []struct {
		name   string
		in     [][]float32
		inFmt  audiocore.StreamFormat
		outFmt audiocore.StreamFormat
		out    [][]float32
	}{
		{"formats differ", [][]float32{frame}, format, stereo, [][]float32{frame}},
		{"stereo", [][]float32{frame, frame}, stereo, stereo, [][]float32{frame, frame}},
		{"sample rate", [][]float32{frame}, slow, slow, [][]float32{frame}},
		{"two input channels", [][]float32{frame, frame}, format, format, [][]float32{frame}},
		{"short frame", [][]float32{frame[:100]}, format, format, [][]float32{frame[:100]}},
		{"short output", [][]float32{frame}, format, format, [][]float32{frame[:10]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ProcessStream(tt.in, tt.inFmt, tt.outFmt, tt.out)
			require.Error(t, err)
			assert.ErrorIs(t, err, audiocore.ErrFormatMismatch)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"sample rate", func(c *Config) { c.SampleRate = 44101 }},
		{"cutoff", func(c *Config) { c.HighPass.Cutoff = 0 }},
		{"taps", func(c *Config) { c.EchoCancel.Taps = 0 }},
		{"step", func(c *Config) { c.EchoCancel.Step = 2 }},
		{"delay", func(c *Config) { c.EchoCancel.Delay = -1 }},
		{"noise level", func(c *Config) { c.NoiseSuppression.Level = "extreme" }},
		{"target", func(c *Config) { c.GainControl.TargetLevel = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			_, err := NewEngine(cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
		})
	}
}

func TestFactoryBuildsFreshEngines(t *testing.T) {
	factory := Factory(DefaultConfig())

	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestConfigFromSettings(t *testing.T) {
	settings := &conf.Settings{}
	settings.Enhancement.HighPass.Enabled = true
	settings.Enhancement.HighPass.Cutoff = 120
	settings.Enhancement.EchoCancel.Taps = 256
	settings.Enhancement.NoiseSuppression.Enabled = true
	settings.Enhancement.NoiseSuppression.Level = conf.NoiseLevelLow
	settings.Enhancement.GainControl.TargetLevel = -20

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, conf.SampleRate, cfg.SampleRate)
	assert.True(t, cfg.HighPass.Enabled)
	assert.InDelta(t, 120, cfg.HighPass.Cutoff, 0)
	assert.False(t, cfg.EchoCancel.Enabled)
	assert.Equal(t, 256, cfg.EchoCancel.Taps)
	assert.Equal(t, conf.NoiseLevelLow, cfg.NoiseSuppression.Level)
	assert.InDelta(t, -20, cfg.GainControl.TargetLevel, 0)
}

func TestFeedFarEndWithoutEchoCancellerIsNoop(t *testing.T) {
	e, err := NewEngine(bypassConfig())
	require.NoError(t, err)
	assert.NotPanics(t, func() { e.FeedFarEnd(make([]float32, frameLen)) })
}

func TestEngineImplementsEnhancer(t *testing.T) {
	var _ audiocore.Enhancer = (*Engine)(nil)
	var _ audiocore.FarEndFeeder = (*Engine)(nil)
}
