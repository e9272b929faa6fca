package audiocore

import (
	"github.com/tphakala/voicecap/internal/observability/metrics"
)

// MetricsCollector forwards pipeline measurements to Prometheus. A nil
// collector, or one built without metrics, records nothing.
type MetricsCollector struct {
	metrics *metrics.AudioCoreMetrics
}

// NewMetricsCollector wraps m, which may be nil
func NewMetricsCollector(m *metrics.AudioCoreMetrics) *MetricsCollector {
	return &MetricsCollector{metrics: m}
}

func (mc *MetricsCollector) enabled() bool {
	return mc != nil && mc.metrics != nil
}

// RecordCounters publishes producer deltas gathered by the health monitor
func (mc *MetricsCollector) RecordCounters(captured, overflowSamples, overflowEvents uint64) {
	if !mc.enabled() {
		return
	}
	if captured > 0 {
		mc.metrics.AddCapturedSamples(captured)
	}
	if overflowSamples > 0 || overflowEvents > 0 {
		mc.metrics.AddOverflow(overflowSamples, overflowEvents)
	}
}

// RecordRingFill publishes ring occupancy
func (mc *MetricsCollector) RecordRingFill(buffered, capacity int) {
	if !mc.enabled() || capacity == 0 {
		return
	}
	mc.metrics.SetRingFill(float64(buffered) / float64(capacity))
}

// RecordFrame records one drained frame
func (mc *MetricsCollector) RecordFrame(seconds float64) {
	if mc.enabled() {
		mc.metrics.RecordProcessedFrame(seconds)
	}
}

// RecordEnhanceFailure records a skipped processed frame
func (mc *MetricsCollector) RecordEnhanceFailure() {
	if mc.enabled() {
		mc.metrics.RecordEnhanceFailure()
	}
}

// RecordSinkWrite records a sink write
func (mc *MetricsCollector) RecordSinkWrite(sink string, n int, err error) {
	if mc.enabled() {
		mc.metrics.RecordSinkWrite(sink, n, err)
	}
}

// RecordState exports the pipeline state
func (mc *MetricsCollector) RecordState(state State) {
	if mc.enabled() {
		mc.metrics.SetPipelineState(int(state))
	}
}

// RecordStart records a start attempt
func (mc *MetricsCollector) RecordStart(err error) {
	if !mc.enabled() {
		return
	}
	if err != nil {
		mc.metrics.RecordPipelineStart(metrics.StatusError)
		return
	}
	mc.metrics.RecordPipelineStart(metrics.StatusSuccess)
}

// RecordStreamError records an asynchronous stream error
func (mc *MetricsCollector) RecordStreamError() {
	if mc.enabled() {
		mc.metrics.RecordStreamError()
	}
}

// RecordReprocessFrame records one offline frame outcome
func (mc *MetricsCollector) RecordReprocessFrame(status string) {
	if mc.enabled() {
		mc.metrics.RecordReprocessFrame(status)
	}
}
