package audiocore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicecap/internal/observability/metrics"
)

func TestReprocessWholeFrames(t *testing.T) {
	var src []byte
	for i := range 4 {
		src = append(src, makeFrame(int16(i*7), FrameSize)...)
	}

	var dst bytes.Buffer
	r := &Reprocessor{Enhancer: &fakeEnhancer{}, Logger: testLogger()}
	stats, err := r.Run(t.Context(), bytes.NewReader(src), &dst)

	require.NoError(t, err)
	assert.Equal(t, 4, stats.Frames)
	assert.Equal(t, 4, stats.Processed)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.TrailingSamples)
	assert.Equal(t, src, dst.Bytes())
}

func TestReprocessDiscardsTrailingPartialFrame(t *testing.T) {
	src := append(makeFrame(3, FrameSize), makeFrame(4, 100)...)

	var dst bytes.Buffer
	r := &Reprocessor{Enhancer: &fakeEnhancer{}, Logger: testLogger()}
	stats, err := r.Run(t.Context(), bytes.NewReader(src), &dst)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Frames)
	assert.Equal(t, 100, stats.TrailingSamples)
	assert.Equal(t, FrameBytes, dst.Len())
}

func TestReprocessSkipsFailedFrames(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewAudioCoreMetrics(registry)
	require.NoError(t, err)

	var src []byte
	for i := range 3 {
		src = append(src, makeFrame(int16(i), FrameSize)...)
	}

	var dst bytes.Buffer
	r := &Reprocessor{
		Enhancer: &fakeEnhancer{failOn: func(frame int64) bool { return frame == 2 }},
		Logger:   testLogger(),
		Metrics:  NewMetricsCollector(m),
	}
	stats, err := r.Run(t.Context(), bytes.NewReader(src), &dst)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, append(makeFrame(0, FrameSize), makeFrame(2, FrameSize)...), dst.Bytes())

	families, err := registry.Gather()
	require.NoError(t, err)
	statuses := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "audiocore_reprocess_frames_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			statuses[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{metrics.StatusSuccess: 2, metrics.StatusSkipped: 1}, statuses)
}

func TestReprocessEmptyInput(t *testing.T) {
	r := &Reprocessor{Enhancer: &fakeEnhancer{}, Logger: testLogger()}
	stats, err := r.Run(t.Context(), bytes.NewReader(nil), &bytes.Buffer{})

	require.NoError(t, err)
	assert.Zero(t, stats.Frames)
}

func TestReprocessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := &Reprocessor{Enhancer: &fakeEnhancer{}, Logger: testLogger()}
	_, err := r.Run(ctx, bytes.NewReader(makeFrame(0, FrameSize)), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("read-only filesystem") }

func TestReprocessWriteErrorIsFatal(t *testing.T) {
	r := &Reprocessor{Enhancer: &fakeEnhancer{}, Logger: testLogger()}
	stats, err := r.Run(t.Context(), bytes.NewReader(makeFrame(0, 2*FrameSize)), failingWriter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only filesystem")
	assert.Equal(t, 1, stats.Frames)
}

func TestReprocessRequiresEnhancer(t *testing.T) {
	_, err := (&Reprocessor{}).Run(t.Context(), bytes.NewReader(nil), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}
