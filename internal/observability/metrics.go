// Package observability exposes voicecap's Prometheus metrics and pipeline
// status over HTTP.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tphakala/voicecap/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	AudioCore *metrics.AudioCoreMetrics
}

// NewMetrics creates a registry with the process and Go runtime collectors
// plus the audiocore metrics.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	audioCore, err := metrics.NewAudioCoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create AudioCore metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		AudioCore: audioCore,
	}, nil
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
