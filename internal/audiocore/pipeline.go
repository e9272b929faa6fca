package audiocore

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/tphakala/voicecap/internal/diagnostics"
	"github.com/tphakala/voicecap/internal/errors"
	"github.com/tphakala/voicecap/internal/logger"
	"github.com/tphakala/voicecap/internal/observability/tracing"
)

// captureSystemInfo is replaced in tests
var captureSystemInfo = func() []logger.Field {
	return diagnostics.CaptureSystemInfo().Fields()
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStreamOpener sets the capture backend
func WithStreamOpener(opener StreamOpener) Option {
	return func(p *Pipeline) { p.opener = opener }
}

// WithSinkOpener sets how raw and processed targets are opened
func WithSinkOpener(open SinkOpener) Option {
	return func(p *Pipeline) { p.openSink = open }
}

// WithEnhancerFactory sets the enhancer built for each run
func WithEnhancerFactory(factory EnhancerFactory) Option {
	return func(p *Pipeline) { p.newEnhancer = factory }
}

// WithLogger sets the pipeline logger
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithMetrics sets the metrics collector
func WithMetrics(mc *MetricsCollector) Option {
	return func(p *Pipeline) { p.metrics = mc }
}

// WithRingFrames sets the ring capacity in frames
func WithRingFrames(frames int) Option {
	return func(p *Pipeline) { p.ringFrames = frames }
}

// WithDevice sets the capture device and how it is shared
func WithDevice(device string, mode SharingMode, periodFrames int) Option {
	return func(p *Pipeline) {
		p.capture.Device = device
		p.capture.SharingMode = mode
		p.capture.PeriodFrames = periodFrames
	}
}

// WithMonitorInterval sets how often the health monitor samples the pipeline,
// and after how many consecutive overflowing intervals a system snapshot is logged.
func WithMonitorInterval(interval time.Duration, overflowDiagnostics int) Option {
	return func(p *Pipeline) {
		p.monitorInterval = interval
		p.overflowDiagnostics = overflowDiagnostics
	}
}

// counters are written by the producer and consumer and read by anyone
type counters struct {
	captured        atomic.Uint64
	overflowSamples atomic.Uint64
	overflowEvents  atomic.Uint64
	frames          atomic.Uint64
	enhanceFailures atomic.Uint64
	sinkErrors      atomic.Uint64
	rawBytes        atomic.Uint64
	processedBytes  atomic.Uint64
	streamErrors    atomic.Uint64
}

func (c *counters) reset() {
	for _, v := range []*atomic.Uint64{
		&c.captured, &c.overflowSamples, &c.overflowEvents, &c.frames, &c.enhanceFailures,
		&c.sinkErrors, &c.rawBytes, &c.processedBytes, &c.streamErrors,
	} {
		v.Store(0)
	}
}

// Stats is a snapshot of the current or last run
type Stats struct {
	State           State         `json:"state"`
	Uptime          time.Duration `json:"uptime_ns"`
	CapturedSamples uint64        `json:"captured_samples"`
	OverflowSamples uint64        `json:"overflow_samples"`
	OverflowEvents  uint64        `json:"overflow_events"`
	Frames          uint64        `json:"frames"`
	EnhanceFailures uint64        `json:"enhance_failures"`
	SinkErrors      uint64        `json:"sink_errors"`
	RawBytes        uint64        `json:"raw_bytes"`
	ProcessedBytes  uint64        `json:"processed_bytes"`
	StreamErrors    uint64        `json:"stream_errors"`
	BufferedSamples int           `json:"buffered_samples"`
	RingCapacity    int           `json:"ring_capacity"`
	LastError       string        `json:"last_error,omitempty"`
}

// session holds everything owned by one run
type session struct {
	raw       Sink
	processed Sink
	enhancer  Enhancer
	stream    CaptureStream

	quit       chan struct{} // closed at the start of stop
	faults     chan error
	supervised chan struct{} // closed when the supervisor exits
	wg         sync.WaitGroup
	startedAt  time.Time
	log        logger.Logger // carries the trace ID of the start span

	enhanceLog *rate.Limiter
	sinkLog    *rate.Limiter
}

func (s *session) quitting() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// report hands an asynchronous fault to the supervisor without blocking.
// Only the first fault of a run is kept.
func (s *session) report(err error) {
	select {
	case s.faults <- err:
	default:
	}
}

// Pipeline wires a capture stream through a FrameRing to the enhancer and
// the raw and processed sinks.
//
// The capture callback only copies into the ring. A single consumer goroutine
// drains whole frames and performs all sink I/O. A Pipeline can be started
// again after it stops.
type Pipeline struct {
	opener              StreamOpener
	openSink            SinkOpener
	newEnhancer         EnhancerFactory
	log                 logger.Logger
	metrics             *MetricsCollector
	capture             CaptureConfig
	ringFrames          int
	monitorInterval     time.Duration
	overflowDiagnostics int

	ring     *FrameRing
	counters counters
	state    atomic.Int32
	running  atomic.Bool

	mu      sync.Mutex // serialises Start and Stop
	session *session

	// runMu guards the fields describing the last run
	runMu      sync.RWMutex
	done       chan struct{}
	fault      error
	startedAt  time.Time
	stoppedAt  time.Time
	supervised chan struct{}
}

// NewPipeline creates a stopped pipeline. A stream opener, sink opener and
// enhancer factory are required.
func NewPipeline(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		capture: CaptureConfig{
			SampleRate:  SampleRate,
			Channels:    Channels,
			Format:      FormatS16,
			SharingMode: SharingShared,
		},
		ringFrames:          DefaultRingFrames,
		monitorInterval:     DefaultMonitorInterval,
		overflowDiagnostics: DefaultOverflowDiagnostics,
	}
	for _, opt := range opts {
		opt(p)
	}

	var missing []string
	if p.opener == nil {
		missing = append(missing, "stream opener")
	}
	if p.openSink == nil {
		missing = append(missing, "sink opener")
	}
	if p.newEnhancer == nil {
		missing = append(missing, "enhancer factory")
	}
	if len(missing) > 0 {
		return nil, newError(ErrMissingDependency, errors.CategoryValidation, "new_pipeline").
			Context("missing", missing).
			Build()
	}

	if p.log == nil {
		p.log = logger.Global().Module("audiocore")
	}
	if p.monitorInterval <= 0 {
		p.monitorInterval = DefaultMonitorInterval
	}

	ring, err := NewFrameRing(p.ringFrames * FrameSize)
	if err != nil {
		return nil, err
	}
	p.ring = ring

	p.done = make(chan struct{})
	close(p.done)
	p.metrics.RecordState(StateStopped)

	return p, nil
}

// Start opens both sinks, builds the enhancer, opens and starts the capture
// stream and begins draining. On any failure everything acquired so far is
// released and the pipeline stays Stopped.
func (p *Pipeline) Start(ctx context.Context, rawTarget, processedTarget string) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st := p.State(); st != StateStopped {
		return newError(ErrAlreadyRunning, errors.CategoryState, "start").
			Context("state", st.String()).
			Build()
	}

	ctx, span := tracing.StartSpan(ctx, "pipeline.start",
		attribute.String("raw", rawTarget),
		attribute.String("processed", processedTarget),
		attribute.Int("ring_capacity", p.ring.Capacity()),
	)
	defer func() {
		p.metrics.RecordStart(err)
		tracing.EndSpan(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return newError(err, errors.CategoryCancellation, "start").Build()
	}

	p.setState(StateStarting)
	s, err := p.openSession(rawTarget, processedTarget)
	if err != nil {
		p.setState(StateStopped)
		return err
	}

	p.ring.Clear()
	p.counters.reset()
	s.startedAt = time.Now()
	s.log = p.log.WithContext(tracing.WithLogTraceID(ctx))

	done := make(chan struct{})
	p.runMu.Lock()
	p.done = done
	p.fault = nil
	p.startedAt = s.startedAt
	p.stoppedAt = time.Time{}
	p.supervised = s.supervised
	p.runMu.Unlock()

	stream, err := p.opener.OpenStream(p.capture, CaptureCallbacks{
		Data:  p.onCapture,
		Error: func(err error) { p.onStreamError(s, err) },
	})
	if err != nil {
		p.abortStart(s, done)
		return newError(err, errors.CategoryHardware, "open_stream").
			Context("device", p.capture.Device).
			Build()
	}
	s.stream = stream

	p.running.Store(true)
	s.wg.Go(func() { p.consume(s) })
	s.wg.Go(func() { p.monitor(s) })

	if err := stream.Start(); err != nil {
		p.running.Store(false)
		close(s.quit)
		s.wg.Wait()
		if closeErr := stream.Close(); closeErr != nil {
			p.log.Warn("failed to close capture stream after start failure", logger.Error(closeErr))
		}
		s.stream = nil
		p.abortStart(s, done)
		return newError(err, errors.CategoryHardware, "start_stream").
			Context("device", p.capture.Device).
			Build()
	}

	p.session = s
	go p.supervise(s)
	p.setState(StateRunning)

	s.log.Info("capture pipeline started",
		logger.Time("started_at", s.startedAt),
		logger.String("raw", rawTarget),
		logger.String("processed", processedTarget),
		logger.String("device", deviceName(p.capture.Device)),
		logger.String("sharing", p.capture.SharingMode.String()),
		logger.Int("ring_capacity", p.ring.Capacity()))

	return nil
}

// openSession opens the sinks and builds the enhancer. The raw sink is
// closed again when anything after it fails.
func (p *Pipeline) openSession(rawTarget, processedTarget string) (*session, error) {
	raw, err := p.openSink(rawTarget)
	if err != nil {
		return nil, newError(err, errors.CategoryFileIO, "open_raw_sink").
			Context("target", rawTarget).
			Build()
	}

	processed, err := p.openSink(processedTarget)
	if err != nil {
		closeQuietly(p.log, "raw sink", raw)
		return nil, newError(err, errors.CategoryFileIO, "open_processed_sink").
			Context("target", processedTarget).
			Build()
	}

	enhancer, err := p.newEnhancer()
	if err != nil {
		closeQuietly(p.log, "raw sink", raw)
		closeQuietly(p.log, "processed sink", processed)
		return nil, newError(err, errors.CategoryAudio, "create_enhancer").Build()
	}

	return &session{
		raw:        raw,
		processed:  processed,
		enhancer:   enhancer,
		quit:       make(chan struct{}),
		faults:     make(chan error, 1),
		supervised: make(chan struct{}),
		enhanceLog: rate.NewLimiter(rate.Every(logInterval), 1),
		sinkLog:    rate.NewLimiter(rate.Every(logInterval), 1),
	}, nil
}

// abortStart releases a session that never reached Running
func (p *Pipeline) abortStart(s *session, done chan struct{}) {
	if enh, ok := s.enhancer.(io.Closer); ok {
		closeQuietly(p.log, "enhancer", enh)
	}
	closeQuietly(p.log, "raw sink", s.raw)
	closeQuietly(p.log, "processed sink", s.processed)
	close(s.supervised)

	p.runMu.Lock()
	p.stoppedAt = time.Now()
	p.runMu.Unlock()
	close(done)

	p.setState(StateStopped)
}

// Stop ends the current run: the consumer is woken and joined, the stream is
// stopped and closed, then both sinks are closed. Samples still buffered are
// discarded. Calling Stop on a stopped pipeline does nothing.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	s := p.session
	err := p.stopLocked(context.Background())
	p.mu.Unlock()

	if s != nil {
		<-s.supervised
	}
	return err
}

// Close stops the pipeline. It is safe to defer on every exit path.
func (p *Pipeline) Close() error {
	return p.Stop()
}

// stopOnFault is used by the supervisor, which must not wait for itself.
// A fault that races a requested stop is dropped: quit is closed under mu.
func (p *Pipeline) stopOnFault(s *session, fault error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != s || s.quitting() {
		s.log.Debug("ignoring stream fault after stop was requested", logger.Error(fault))
		return
	}

	s.log.Error("capture pipeline fault, stopping", logger.Error(fault))
	p.runMu.Lock()
	p.fault = fault
	p.runMu.Unlock()

	if err := p.stopLocked(context.Background()); err != nil {
		s.log.Warn("errors while stopping after stream fault", logger.Error(err))
	}
}

func (p *Pipeline) stopLocked(ctx context.Context) (err error) {
	s := p.session
	if s == nil {
		return nil
	}

	_, span := tracing.StartSpan(ctx, "pipeline.stop")
	defer func() { tracing.EndSpan(span, err) }()

	p.setState(StateStopping)

	// the consumer checks running before waiting, and quit wakes it if it already waits
	p.running.Store(false)
	close(s.quit)
	s.wg.Wait()

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, newError(err, errors.CategoryHardware, "stop_stream").Build())
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, newError(err, errors.CategoryHardware, "close_stream").Build())
	}
	if enh, ok := s.enhancer.(io.Closer); ok {
		if err := enh.Close(); err != nil {
			errs = append(errs, newError(err, errors.CategoryAudio, "close_enhancer").Build())
		}
	}
	if err := s.raw.Close(); err != nil {
		errs = append(errs, newError(err, errors.CategoryFileIO, "close_raw_sink").Build())
	}
	if err := s.processed.Close(); err != nil {
		errs = append(errs, newError(err, errors.CategoryFileIO, "close_processed_sink").Build())
	}

	p.session = nil
	stoppedAt := time.Now()

	p.runMu.Lock()
	p.stoppedAt = stoppedAt
	done := p.done
	p.runMu.Unlock()

	p.setState(StateStopped)
	close(done)

	stats := p.Stats()
	s.log.Info("capture pipeline stopped",
		logger.Duration("uptime", stoppedAt.Sub(s.startedAt)),
		logger.Uint64("captured_samples", stats.CapturedSamples),
		logger.Uint64("frames", stats.Frames),
		logger.Uint64("overflow_samples", stats.OverflowSamples),
		logger.Uint64("enhance_failures", stats.EnhanceFailures),
		logger.Uint64("sink_errors", stats.SinkErrors),
		logger.Int("discarded_samples", stats.BufferedSamples))

	return errors.Join(errs...)
}

// supervise turns an asynchronous fault into a stop
func (p *Pipeline) supervise(s *session) {
	defer close(s.supervised)

	select {
	case err := <-s.faults:
		p.stopOnFault(s, err)
	case <-s.quit:
	}
}

// onStreamError is the capture backend's error callback
func (p *Pipeline) onStreamError(s *session, err error) {
	p.counters.streamErrors.Add(1)
	p.metrics.RecordStreamError()
	s.report(errors.Join(ErrStreamFault, err))
}

// FeedFarEnd forwards a playback reference frame to the running enhancer
// when it cancels echo. It reports whether the frame was accepted.
// The record command has no playback path and never calls it, so there the
// echo canceller sees a silent reference and passes capture through unchanged.
func (p *Pipeline) FeedFarEnd(frame []float32) bool {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()

	if s == nil {
		return false
	}
	feeder, ok := s.enhancer.(FarEndFeeder)
	if !ok {
		return false
	}
	feeder.FeedFarEnd(frame)
	return true
}

func (p *Pipeline) setState(st State) {
	p.state.Store(int32(st))
	p.metrics.RecordState(st)
}

// State returns the lifecycle state
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Done returns a channel closed when the current run ends, for any reason.
// When the pipeline is stopped the channel is already closed.
func (p *Pipeline) Done() <-chan struct{} {
	p.runMu.RLock()
	defer p.runMu.RUnlock()
	return p.done
}

// Err returns the asynchronous fault that ended the last run, if any
func (p *Pipeline) Err() error {
	p.runMu.RLock()
	defer p.runMu.RUnlock()
	return p.fault
}

// Stats returns counters of the current or last run
func (p *Pipeline) Stats() Stats {
	p.runMu.RLock()
	startedAt, stoppedAt, fault := p.startedAt, p.stoppedAt, p.fault
	p.runMu.RUnlock()

	st := Stats{
		State:           p.State(),
		CapturedSamples: p.counters.captured.Load(),
		OverflowSamples: p.counters.overflowSamples.Load(),
		OverflowEvents:  p.counters.overflowEvents.Load(),
		Frames:          p.counters.frames.Load(),
		EnhanceFailures: p.counters.enhanceFailures.Load(),
		SinkErrors:      p.counters.sinkErrors.Load(),
		RawBytes:        p.counters.rawBytes.Load(),
		ProcessedBytes:  p.counters.processedBytes.Load(),
		StreamErrors:    p.counters.streamErrors.Load(),
		BufferedSamples: p.ring.AvailableData(),
		RingCapacity:    p.ring.Capacity(),
	}

	switch {
	case startedAt.IsZero():
	case stoppedAt.IsZero():
		st.Uptime = time.Since(startedAt)
	default:
		st.Uptime = stoppedAt.Sub(startedAt)
	}
	if fault != nil {
		st.LastError = fault.Error()
	}
	return st
}

// Status returns Stats for the HTTP status endpoint
func (p *Pipeline) Status() any {
	return p.Stats()
}

func deviceName(device string) string {
	if device == "" {
		return "default"
	}
	return device
}

func closeQuietly(log logger.Logger, what string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+what, logger.Error(err))
	}
}
