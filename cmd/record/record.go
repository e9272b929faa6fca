// Package record implements the live capture command.
package record

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/audiocore/enhance"
	"github.com/tphakala/voicecap/internal/audiocore/export"
	"github.com/tphakala/voicecap/internal/audiocore/sources/malgo"
	"github.com/tphakala/voicecap/internal/conf"
	"github.com/tphakala/voicecap/internal/logger"
	"github.com/tphakala/voicecap/internal/observability"
)

// flagKeys maps command flags to their configuration keys
var flagKeys = map[string]string{
	"duration":  "record.duration",
	"source":    "audio.source",
	"sharing":   "audio.sharingmode",
	"raw":       "output.raw",
	"processed": "output.processed",
	"telemetry": "telemetry.enabled",
	"listen":    "telemetry.listen",
}

// Command creates the record command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from a microphone through the enhancement pipeline",
		Long: "Capture 48 kHz mono audio, write the untouched stream to the raw target and the " +
			"enhanced stream to the processed target. Runs for --duration, or until interrupted when it is 0.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags configures flags specific to the record command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Duration("duration", 20*time.Second, "Recording length, 0 records until interrupted")
	cmd.Flags().String("source", "sysdefault", "Capture device name or id (\"sysdefault\", \"USB Audio\", ...)")
	cmd.Flags().String("sharing", conf.SharingShared, "Device sharing mode (shared or exclusive)")
	cmd.Flags().String("raw", "", "Raw capture target, may contain {session} and {timestamp}")
	cmd.Flags().String("processed", "", "Processed capture target, may contain {session} and {timestamp}")
	cmd.Flags().Bool("telemetry", false, "Serve /metrics, /health and /status while recording")
	cmd.Flags().String("listen", "", "Listen address of the telemetry endpoint")

	for flag, key := range flagKeys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run records until the configured duration elapses, the context is
// cancelled or the pipeline stops on a fault.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("record")

	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var promMetrics *observability.Metrics
	var collector *audiocore.MetricsCollector
	if settings.Telemetry.Enabled {
		var err error
		if promMetrics, err = observability.NewMetrics(); err != nil {
			return err
		}
		collector = audiocore.NewMetricsCollector(promMetrics.AudioCore)
	}

	pipeline, err := audiocore.NewPipeline(
		audiocore.WithStreamOpener(malgo.NewOpener(logger.Global().Module("malgo"))),
		audiocore.WithSinkOpener(export.OpenSink),
		audiocore.WithEnhancerFactory(enhance.Factory(enhance.ConfigFromSettings(settings))),
		audiocore.WithLogger(logger.Global().Module("audiocore")),
		audiocore.WithMetrics(collector),
		audiocore.WithRingFrames(settings.Audio.RingFrames),
		audiocore.WithDevice(settings.Audio.Source, audiocore.ParseSharingMode(settings.Audio.SharingMode), settings.Audio.PeriodFrames),
		audiocore.WithMonitorInterval(settings.Monitor.Interval, settings.Monitor.OverflowDiagnostics),
	)
	if err != nil {
		return err
	}
	defer func() { _ = pipeline.Close() }()

	session, now := uuid.New(), time.Now()
	rawTarget := export.ExpandTarget(settings.Output.Raw, session, now)
	processedTarget := export.ExpandTarget(settings.Output.Processed, session, now)

	g, gctx := errgroup.WithContext(ctx)

	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, promMetrics, pipeline)
		if err != nil {
			return err
		}
		g.Go(func() error { return endpoint.Start(gctx) })
	}

	g.Go(func() error {
		defer cancel()
		return record(gctx, log, pipeline, rawTarget, processedTarget, settings.Record.Duration)
	})

	return g.Wait()
}

// recorder is the part of the pipeline the record loop drives
type recorder interface {
	Start(ctx context.Context, rawTarget, processedTarget string) error
	Stop() error
	Done() <-chan struct{}
	Err() error
	Stats() audiocore.Stats
}

func record(ctx context.Context, log logger.Logger, p recorder, rawTarget, processedTarget string, duration time.Duration) error {
	if err := p.Start(ctx, rawTarget, processedTarget); err != nil {
		return err
	}
	log.Info("recording",
		logger.String("raw", rawTarget),
		logger.String("processed", processedTarget),
		logger.Duration("duration", duration))

	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-deadline:
	case <-ctx.Done():
		log.Info("recording interrupted")
	case <-p.Done():
	}

	stopErr := p.Stop()
	stats := p.Stats()
	log.Info("recording finished",
		logger.Duration("uptime", stats.Uptime),
		logger.Uint64("frames", stats.Frames),
		logger.Uint64("enhance_failures", stats.EnhanceFailures),
		logger.Uint64("overflow_samples", stats.OverflowSamples),
		logger.Uint64("raw_bytes", stats.RawBytes),
		logger.Uint64("processed_bytes", stats.ProcessedBytes))

	if err := p.Err(); err != nil {
		return fmt.Errorf("capture stopped: %w", err)
	}
	return stopErr
}
