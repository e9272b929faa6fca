package audiocore

import (
	"time"

	"github.com/tphakala/voicecap/internal/conf"
)

// Audio format of the capture pipeline
const (
	SampleRate     = conf.SampleRate
	Channels       = conf.NumChannels
	BitDepth       = conf.BitDepth
	BytesPerSample = conf.BytesPerSample

	// FrameSize is the number of samples handed to the enhancer at once
	FrameSize = conf.FrameSize
	// FrameBytes is FrameSize in bytes
	FrameBytes = conf.FrameBytes
)

// Pipeline defaults
const (
	DefaultRingFrames      = conf.DefaultRingFrames
	DefaultMonitorInterval = time.Second

	// DefaultOverflowDiagnostics is the number of consecutive overflowing
	// monitor intervals after which a system snapshot is logged
	DefaultOverflowDiagnostics = 5

	// logInterval limits repeated warnings from the consumer and monitor
	logInterval = time.Second
)

// fullScale maps int16 amplitudes to [-1, 1)
const fullScale = 32768.0
