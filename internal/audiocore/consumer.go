package audiocore

import (
	"sync/atomic"
	"time"

	"github.com/tphakala/voicecap/internal/errors"
	"github.com/tphakala/voicecap/internal/logger"
	"github.com/tphakala/voicecap/internal/observability/metrics"
)

// onCapture is the capture data callback. It runs on the backend's real-time
// thread, so it only touches the ring and atomic counters.
func (p *Pipeline) onCapture(pcm []byte) {
	if !p.running.Load() {
		return
	}

	delivered := len(pcm) / BytesPerSample
	accepted := p.ring.Write(pcm)
	p.counters.captured.Add(uint64(delivered))

	if dropped := delivered - accepted; dropped > 0 {
		p.counters.overflowSamples.Add(uint64(dropped))
		p.counters.overflowEvents.Add(1)
	}
}

// consume drains whole frames until the run ends or the ring fails
func (p *Pipeline) consume(s *session) {
	raw := make([]byte, FrameBytes)
	processed := make([]byte, FrameBytes)
	in := [][]float32{make([]float32, FrameSize)}
	out := [][]float32{make([]float32, FrameSize)}

	for p.waitForFrame(s) {
		if !p.ring.Read(raw, FrameSize) {
			err := newError(ErrBufferRead, errors.CategoryBuffer, "consume").
				Context("available", p.ring.AvailableData()).
				Context("frame_size", FrameSize).
				Build()
			p.log.Error("frame read failed, consumer exiting", logger.Error(err))
			s.report(err)
			return
		}
		p.processFrame(s, raw, processed, in, out)
	}

	if n := p.ring.AvailableData(); n > 0 {
		p.log.Debug("discarding buffered samples at stop", logger.Int("samples", n))
	}
}

// waitForFrame blocks until a whole frame is buffered or the run ends
func (p *Pipeline) waitForFrame(s *session) bool {
	for {
		if !p.running.Load() {
			return false
		}
		if p.ring.AvailableData() >= FrameSize {
			return true
		}
		select {
		case <-p.ring.Notify():
		case <-s.quit:
			return false
		}
	}
}

// processFrame writes the raw frame, enhances it and writes the result.
// A failed enhancement skips only the processed write.
func (p *Pipeline) processFrame(s *session, raw, processed []byte, in, out [][]float32) {
	start := time.Now()
	p.counters.frames.Add(1)
	defer func() { p.metrics.RecordFrame(time.Since(start).Seconds()) }()

	p.writeSink(s, s.raw, metrics.SinkRaw, raw, &p.counters.rawBytes)

	PCM16ToFloat32(in[0], raw)
	if err := processSafely(s.enhancer, in, out); err != nil {
		p.counters.enhanceFailures.Add(1)
		p.metrics.RecordEnhanceFailure()
		if s.enhanceLog.Allow() {
			p.log.Warn("enhancement failed, frame skipped",
				logger.Error(err),
				logger.Uint64("total_failures", p.counters.enhanceFailures.Load()))
		}
		return
	}

	Float32ToPCM16(processed, out[0])
	p.writeSink(s, s.processed, metrics.SinkProcessed, processed, &p.counters.processedBytes)
}

func (p *Pipeline) writeSink(s *session, sink Sink, name string, data []byte, total *atomic.Uint64) {
	n, err := sink.Write(data)
	if n > 0 {
		total.Add(uint64(n))
	}
	p.metrics.RecordSinkWrite(name, n, err)
	if err == nil {
		return
	}

	p.counters.sinkErrors.Add(1)
	if s.sinkLog.Allow() {
		p.log.Warn("sink write failed",
			logger.String("sink", name),
			logger.Int("written", n),
			logger.Error(err),
			logger.Uint64("total_errors", p.counters.sinkErrors.Load()))
	}
}

// processSafely runs the enhancer and turns a panic into an error
func processSafely(enh Enhancer, in, out [][]float32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("enhancer panic: %v", r).
				Component(ComponentAudioCore).
				Category(errors.CategoryAudio).
				Context("operation", "process_stream").
				Build()
		}
	}()
	return enh.ProcessStream(in, PipelineFormat, PipelineFormat, out)
}
