package audiocore

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tphakala/voicecap/internal/errors"
	"github.com/tphakala/voicecap/internal/logger"
	"github.com/tphakala/voicecap/internal/observability/metrics"
	"github.com/tphakala/voicecap/internal/observability/tracing"
)

// ReprocessStats summarises an offline run
type ReprocessStats struct {
	Frames          int           `json:"frames"`
	Processed       int           `json:"processed"`
	Failed          int           `json:"failed"`
	TrailingSamples int           `json:"trailing_samples"`
	Duration        time.Duration `json:"duration_ns"`
}

// Reprocessor runs recorded s16le audio through an enhancer frame by frame,
// the same way the live consumer does.
type Reprocessor struct {
	Enhancer Enhancer
	Logger   logger.Logger
	Metrics  *MetricsCollector
}

// Run reads src until EOF and writes enhanced frames to dst. A trailing
// partial frame is discarded. Frames the enhancer rejects are skipped.
// Cancellation is checked between frames.
func (r *Reprocessor) Run(ctx context.Context, src io.Reader, dst io.Writer) (stats ReprocessStats, err error) {
	if r.Enhancer == nil {
		return stats, newError(ErrMissingDependency, errors.CategoryValidation, "reprocess").
			Context("missing", "enhancer").
			Build()
	}
	log := r.Logger
	if log == nil {
		log = logger.Global().Module("audiocore")
	}

	ctx, span := tracing.StartSpan(ctx, "reprocess")
	start := time.Now()
	defer func() {
		stats.Duration = time.Since(start)
		span.SetAttributes(
			attribute.Int("frames", stats.Frames),
			attribute.Int("failed", stats.Failed),
		)
		tracing.EndSpan(span, err)
	}()

	raw := make([]byte, FrameBytes)
	processed := make([]byte, FrameBytes)
	in := [][]float32{make([]float32, FrameSize)}
	out := [][]float32{make([]float32, FrameSize)}

	for {
		if err := ctx.Err(); err != nil {
			return stats, newError(err, errors.CategoryCancellation, "reprocess").
				Context("frames", stats.Frames).
				Build()
		}

		n, readErr := io.ReadFull(src, raw)
		switch {
		case errors.Is(readErr, io.EOF):
			return stats, nil
		case errors.Is(readErr, io.ErrUnexpectedEOF):
			stats.TrailingSamples = n / BytesPerSample
			log.Debug("discarding trailing partial frame", logger.Int("samples", stats.TrailingSamples))
			return stats, nil
		case readErr != nil:
			return stats, newError(readErr, errors.CategoryFileIO, "reprocess_read").
				Context("frames", stats.Frames).
				Build()
		}
		stats.Frames++

		PCM16ToFloat32(in[0], raw)
		if err := processSafely(r.Enhancer, in, out); err != nil {
			stats.Failed++
			r.Metrics.RecordReprocessFrame(metrics.StatusSkipped)
			log.Debug("enhancement failed, frame skipped", logger.Int("frame", stats.Frames), logger.Error(err))
			continue
		}

		Float32ToPCM16(processed, out[0])
		if _, err := dst.Write(processed); err != nil {
			r.Metrics.RecordReprocessFrame(metrics.StatusError)
			return stats, newError(err, errors.CategoryFileIO, "reprocess_write").
				Context("frames", stats.Frames).
				Build()
		}
		stats.Processed++
		r.Metrics.RecordReprocessFrame(metrics.StatusSuccess)
	}
}
