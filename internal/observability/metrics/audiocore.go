// Package metrics provides audiocore metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline state values exported by audiocore_pipeline_state
const (
	StateStopped  = 0
	StateStarting = 1
	StateRunning  = 2
	StateStopping = 3
)

// AudioCoreMetrics contains Prometheus metrics for the capture pipeline
type AudioCoreMetrics struct {
	registry *prometheus.Registry

	// Producer metrics
	capturedSamples prometheus.Counter
	overflowSamples prometheus.Counter
	overflowEvents  prometheus.Counter
	ringFillRatio   prometheus.Gauge

	// Consumer metrics
	processedFrames    prometheus.Counter
	enhanceFailures    prometheus.Counter
	processingDuration prometheus.Histogram
	sinkBytes          *prometheus.CounterVec
	sinkErrors         *prometheus.CounterVec

	// Lifecycle metrics
	pipelineState  prometheus.Gauge
	pipelineStarts *prometheus.CounterVec
	streamErrors   prometheus.Counter

	// Offline reprocessing
	reprocessFrames *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewAudioCoreMetrics creates and registers new audiocore metrics
func NewAudioCoreMetrics(registry *prometheus.Registry) (*AudioCoreMetrics, error) {
	m := &AudioCoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *AudioCoreMetrics) initMetrics() {
	m.capturedSamples = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiocore_captured_samples_total",
		Help: "Total number of samples delivered by the capture device",
	})

	m.overflowSamples = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiocore_overflow_samples_total",
		Help: "Total number of captured samples dropped because the ring buffer was full",
	})

	m.overflowEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiocore_overflow_events_total",
		Help: "Total number of device callbacks that could not be stored completely",
	})

	m.ringFillRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audiocore_ring_fill_ratio",
		Help: "Fraction of the ring buffer occupied by unread samples",
	})

	m.processedFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiocore_processed_frames_total",
		Help: "Total number of frames drained from the ring buffer",
	})

	m.enhanceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiocore_enhance_failures_total",
		Help: "Total number of frames whose enhancement failed",
	})

	m.processingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "audiocore_processing_duration_seconds",
		Help:    "Time taken to convert, enhance and persist one frame",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
	})

	m.sinkBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocore_sink_bytes_total",
			Help: "Total bytes written to output sinks",
		},
		[]string{"sink"},
	)

	m.sinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocore_sink_errors_total",
			Help: "Total number of failed sink writes",
		},
		[]string{"sink"},
	)

	m.pipelineState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audiocore_pipeline_state",
		Help: "Pipeline state (0=stopped, 1=starting, 2=running, 3=stopping)",
	})

	m.pipelineStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocore_pipeline_starts_total",
			Help: "Total number of pipeline start attempts",
		},
		[]string{"status"},
	)

	m.streamErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audiocore_stream_errors_total",
		Help: "Total number of asynchronous capture stream errors",
	})

	m.reprocessFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiocore_reprocess_frames_total",
			Help: "Total number of frames handled by offline reprocessing",
		},
		[]string{"status"},
	)

	m.collectors = []prometheus.Collector{
		m.capturedSamples,
		m.overflowSamples,
		m.overflowEvents,
		m.ringFillRatio,
		m.processedFrames,
		m.enhanceFailures,
		m.processingDuration,
		m.sinkBytes,
		m.sinkErrors,
		m.pipelineState,
		m.pipelineStarts,
		m.streamErrors,
		m.reprocessFrames,
	}
}

// Describe implements the Collector interface
func (m *AudioCoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *AudioCoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// AddCapturedSamples adds to the captured sample counter
func (m *AudioCoreMetrics) AddCapturedSamples(n uint64) {
	m.capturedSamples.Add(float64(n))
}

// AddOverflow records dropped samples and the number of callbacks that dropped them
func (m *AudioCoreMetrics) AddOverflow(samples, events uint64) {
	m.overflowSamples.Add(float64(samples))
	m.overflowEvents.Add(float64(events))
}

// SetRingFill updates the ring buffer occupancy ratio
func (m *AudioCoreMetrics) SetRingFill(ratio float64) {
	m.ringFillRatio.Set(ratio)
}

// RecordProcessedFrame records a frame drained by the consumer and how long it took
func (m *AudioCoreMetrics) RecordProcessedFrame(seconds float64) {
	m.processedFrames.Inc()
	m.processingDuration.Observe(seconds)
}

// RecordEnhanceFailure records a frame the enhancement engine rejected
func (m *AudioCoreMetrics) RecordEnhanceFailure() {
	m.enhanceFailures.Inc()
}

// RecordSinkWrite records a sink write of n bytes
func (m *AudioCoreMetrics) RecordSinkWrite(sink string, n int, err error) {
	if n > 0 {
		m.sinkBytes.WithLabelValues(sink).Add(float64(n))
	}
	if err != nil {
		m.sinkErrors.WithLabelValues(sink).Inc()
	}
}

// SetPipelineState exports the current pipeline state
func (m *AudioCoreMetrics) SetPipelineState(state int) {
	m.pipelineState.Set(float64(state))
}

// RecordPipelineStart records a start attempt
func (m *AudioCoreMetrics) RecordPipelineStart(status string) {
	m.pipelineStarts.WithLabelValues(status).Inc()
}

// RecordStreamError records an asynchronous capture stream error
func (m *AudioCoreMetrics) RecordStreamError() {
	m.streamErrors.Inc()
}

// RecordReprocessFrame records one offline frame by outcome
func (m *AudioCoreMetrics) RecordReprocessFrame(status string) {
	m.reprocessFrames.WithLabelValues(status).Inc()
}
