package audiocore

import (
	"github.com/tphakala/voicecap/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

// Sentinel errors, wrapped by the enhanced errors returned from this package
var (
	// ErrInvalidCapacity is returned for ring capacities that are not a positive multiple of FrameSize
	ErrInvalidCapacity = errors.NewStd("ring capacity must be a positive multiple of the frame size")

	// ErrAlreadyRunning is returned by Start when the pipeline is not stopped
	ErrAlreadyRunning = errors.NewStd("pipeline already running")

	// ErrMissingDependency is returned by NewPipeline when a required collaborator is nil
	ErrMissingDependency = errors.NewStd("pipeline dependency missing")

	// ErrBufferRead is the fatal buffer error: a read failed although enough data was reported
	ErrBufferRead = errors.NewStd("ring buffer read failed")

	// ErrStreamFault is wrapped around errors reported asynchronously by the capture stream
	ErrStreamFault = errors.NewStd("capture stream fault")

	// ErrFormatMismatch is returned when the enhancer is handed an unexpected format
	ErrFormatMismatch = errors.NewStd("stream format mismatch")
)

// newError builds an audiocore error with an operation tag
func newError(err error, category errors.ErrorCategory, operation string) *errors.ErrorBuilder {
	return errors.New(err).
		Component(ComponentAudioCore).
		Category(category).
		Context("operation", operation)
}
