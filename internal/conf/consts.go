// conf/consts.go hard coded constants
package conf

const (
	SampleRate     = 48000 // Hz, capture and processing rate
	BitDepth       = 16    // bits per sample
	NumChannels    = 1     // mono
	BytesPerSample = BitDepth / 8

	// FrameSize is the number of samples in one processing frame, 10 ms at SampleRate
	FrameSize  = SampleRate / 100
	FrameBytes = FrameSize * BytesPerSample

	// DefaultRingFrames is the ring buffer capacity in frames
	DefaultRingFrames = 10
	// MinRingFrames keeps at least one frame of headroom while the consumer drains another
	MinRingFrames = 2
)

// Sharing modes for the capture device
const (
	SharingShared    = "shared"
	SharingExclusive = "exclusive"
)

// Noise suppression levels
const (
	NoiseLevelLow      = "low"
	NoiseLevelModerate = "moderate"
	NoiseLevelHigh     = "high"
	NoiseLevelVeryHigh = "very_high"
)
