// Package enhance implements the per-frame voice enhancement engine used by
// the capture pipeline: a high-pass filter, an NLMS echo canceller, spectral
// noise suppression and adaptive gain control, applied in that order.
package enhance

import (
	"sync"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/conf"
	"github.com/tphakala/voicecap/internal/errors"
)

// ComponentEnhance identifies errors from this package
const ComponentEnhance = "enhance"

// Config selects and tunes the enhancement stages
type Config struct {
	SampleRate int

	HighPass struct {
		Enabled bool
		Cutoff  float64 // Hz
	}

	EchoCancel struct {
		Enabled bool
		Taps    int
		Step    float64
		Delay   int // samples between playback and the echo reaching the microphone
	}

	NoiseSuppression struct {
		Enabled bool
		Level   string
	}

	GainControl struct {
		Enabled     bool
		TargetLevel float64 // dBFS
		MaxGain     float64 // dB
	}
}

// DefaultConfig enables every stage with noise suppression at level high
func DefaultConfig() Config {
	var cfg Config
	cfg.SampleRate = conf.SampleRate
	cfg.HighPass.Enabled = true
	cfg.HighPass.Cutoff = 80
	cfg.EchoCancel.Enabled = true
	cfg.EchoCancel.Taps = DefaultTaps
	cfg.EchoCancel.Step = DefaultStep
	cfg.EchoCancel.Delay = DefaultDelay
	cfg.NoiseSuppression.Enabled = true
	cfg.NoiseSuppression.Level = conf.NoiseLevelHigh
	cfg.GainControl.Enabled = true
	cfg.GainControl.TargetLevel = -18
	cfg.GainControl.MaxGain = 30
	return cfg
}

// ConfigFromSettings maps the enhancement section of the application settings
func ConfigFromSettings(settings *conf.Settings) Config {
	e := settings.Enhancement

	var cfg Config
	cfg.SampleRate = conf.SampleRate
	cfg.HighPass.Enabled = e.HighPass.Enabled
	cfg.HighPass.Cutoff = e.HighPass.Cutoff
	cfg.EchoCancel.Enabled = e.EchoCancel.Enabled
	cfg.EchoCancel.Taps = e.EchoCancel.Taps
	cfg.EchoCancel.Step = e.EchoCancel.Step
	cfg.EchoCancel.Delay = e.EchoCancel.Delay
	cfg.NoiseSuppression.Enabled = e.NoiseSuppression.Enabled
	cfg.NoiseSuppression.Level = e.NoiseSuppression.Level
	cfg.GainControl.Enabled = e.GainControl.Enabled
	cfg.GainControl.TargetLevel = e.GainControl.TargetLevel
	cfg.GainControl.MaxGain = e.GainControl.MaxGain
	return cfg
}

// stage processes one frame in place
type stage interface {
	process(frame []float32)
}

// Engine runs the enabled stages over 10 ms mono frames. ProcessStream must
// be called from one goroutine; FeedFarEnd may be called from another.
type Engine struct {
	format   audiocore.StreamFormat
	frameLen int

	stages []stage
	echo   *echoCanceller

	mu sync.Mutex // serialises ProcessStream
}

// NewEngine builds an engine from cfg
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 || cfg.SampleRate%100 != 0 {
		return nil, newConfigError("sample_rate", cfg.SampleRate)
	}

	e := &Engine{
		format:   audiocore.StreamFormat{SampleRate: cfg.SampleRate, Channels: 1},
		frameLen: cfg.SampleRate / 100,
	}

	if cfg.HighPass.Enabled {
		if cfg.HighPass.Cutoff <= 0 || cfg.HighPass.Cutoff >= float64(cfg.SampleRate)/2 {
			return nil, newConfigError("highpass_cutoff", cfg.HighPass.Cutoff)
		}
		e.stages = append(e.stages, newHighPass(float64(cfg.SampleRate), cfg.HighPass.Cutoff))
	}

	if cfg.EchoCancel.Enabled {
		echo, err := newEchoCanceller(e.frameLen, cfg.EchoCancel.Taps, cfg.EchoCancel.Delay, cfg.EchoCancel.Step)
		if err != nil {
			return nil, err
		}
		e.echo = echo
		e.stages = append(e.stages, echo)
	}

	if cfg.NoiseSuppression.Enabled {
		ns, err := newNoiseSuppressor(e.frameLen, cfg.NoiseSuppression.Level)
		if err != nil {
			return nil, err
		}
		e.stages = append(e.stages, ns)
	}

	if cfg.GainControl.Enabled {
		if cfg.GainControl.MaxGain < 0 || cfg.GainControl.TargetLevel > 0 {
			return nil, newConfigError("gain_control", cfg.GainControl)
		}
		e.stages = append(e.stages, newGainControl(cfg.GainControl.TargetLevel, cfg.GainControl.MaxGain))
	}

	return e, nil
}

// Factory returns an EnhancerFactory building a fresh engine per pipeline run
func Factory(cfg Config) audiocore.EnhancerFactory {
	return func() (audiocore.Enhancer, error) {
		return NewEngine(cfg)
	}
}

// ProcessStream enhances one frame. input is left untouched.
func (e *Engine) ProcessStream(input [][]float32, inputFormat, outputFormat audiocore.StreamFormat, output [][]float32) error {
	if err := e.validate(input, inputFormat, outputFormat, output); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	frame := output[0]
	copy(frame, input[0])
	for _, s := range e.stages {
		s.process(frame)
	}
	return nil
}

func (e *Engine) validate(input [][]float32, inputFormat, outputFormat audiocore.StreamFormat, output [][]float32) error {
	switch {
	case inputFormat != outputFormat:
		return newFormatError("formats differ", inputFormat, outputFormat)
	case inputFormat != e.format:
		return newFormatError("unsupported format", inputFormat, e.format)
	case len(input) != 1 || len(output) != 1:
		return newFormatError("expected one channel", len(input), len(output))
	case len(input[0]) != e.frameLen:
		return newFormatError("frame length", len(input[0]), e.frameLen)
	case len(output[0]) != len(input[0]):
		return newFormatError("output length", len(output[0]), len(input[0]))
	}
	return nil
}

// FeedFarEnd supplies the playback reference for echo cancellation. It is a
// no-op when echo cancellation is disabled.
func (e *Engine) FeedFarEnd(frame []float32) {
	if e.echo != nil {
		e.echo.feedFarEnd(frame)
	}
}

// Stages returns the number of active stages
func (e *Engine) Stages() int {
	return len(e.stages)
}

func newFormatError(reason string, got, want any) error {
	return errors.New(audiocore.ErrFormatMismatch).
		Component(ComponentEnhance).
		Category(errors.CategoryValidation).
		Context("reason", reason).
		Context("got", got).
		Context("want", want).
		Build()
}

func newConfigError(field string, value any) error {
	return errors.Newf("invalid enhancement setting %s", field).
		Component(ComponentEnhance).
		Category(errors.CategoryConfiguration).
		Context("field", field).
		Context("value", value).
		Build()
}
