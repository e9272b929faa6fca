package audiocore

import (
	"io"
)

// StreamFormat describes the float sample layout handed to an Enhancer
type StreamFormat struct {
	SampleRate int
	Channels   int
}

// PipelineFormat is the only format the pipeline produces
var PipelineFormat = StreamFormat{SampleRate: SampleRate, Channels: Channels}

// FrameLength returns the number of samples in a 10 ms frame at this format
func (f StreamFormat) FrameLength() int {
	return f.SampleRate / 100
}

// Enhancer is the per-frame signal processing stage. ProcessStream reads one
// frame per channel from input and writes the same number of samples per
// channel to output. A non-nil error means output must not be used; the
// pipeline skips that frame and carries on.
type Enhancer interface {
	ProcessStream(input [][]float32, inputFormat, outputFormat StreamFormat, output [][]float32) error
}

// FarEndFeeder is implemented by enhancers that cancel echo against a playback reference
type FarEndFeeder interface {
	FeedFarEnd(frame []float32)
}

// EnhancerFactory builds a fresh enhancer for each pipeline run
type EnhancerFactory func() (Enhancer, error)

// Sink is an append-only destination for s16le frames
type Sink interface {
	io.Writer
	io.Closer
}

// SinkOpener opens a sink by target name, typically a file path
type SinkOpener func(target string) (Sink, error)

// SampleFormat is the device sample format
type SampleFormat int

const (
	FormatS16 SampleFormat = iota
)

func (f SampleFormat) String() string {
	if f == FormatS16 {
		return "s16le"
	}
	return "unknown"
}

// SharingMode controls whether the device may be shared with other applications
type SharingMode int

const (
	SharingShared SharingMode = iota
	SharingExclusive
)

func (m SharingMode) String() string {
	switch m {
	case SharingShared:
		return "shared"
	case SharingExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// CaptureConfig is the fixed input format requested from the device
type CaptureConfig struct {
	Device       string // device name or id, empty for the system default
	SampleRate   int
	Channels     int
	Format       SampleFormat
	SharingMode  SharingMode
	PeriodFrames int // samples per callback, 0 lets the backend decide
}

// CaptureCallbacks are invoked by the capture backend.
//
// Data runs on the backend's real-time thread with interleaved samples in the
// configured format. The slice is only valid for the duration of the call.
// Error may run on any thread and must not block.
type CaptureCallbacks struct {
	Data  func(pcm []byte)
	Error func(err error)
}

// CaptureStream is an opened capture device
type CaptureStream interface {
	Start() error
	Stop() error
	Close() error
}

// StreamOpener opens capture streams. Callbacks are bound per stream so
// several pipelines can coexist without shared state.
type StreamOpener interface {
	OpenStream(cfg CaptureConfig, callbacks CaptureCallbacks) (CaptureStream, error)
}

// ParseSharingMode maps the configuration string to a SharingMode
func ParseSharingMode(s string) SharingMode {
	if s == SharingExclusive.String() {
		return SharingExclusive
	}
	return SharingShared
}
