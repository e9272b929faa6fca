// Package reprocess implements offline enhancement of recorded audio.
package reprocess

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/audiocore/enhance"
	"github.com/tphakala/voicecap/internal/audiocore/export"
	"github.com/tphakala/voicecap/internal/conf"
	"github.com/tphakala/voicecap/internal/errors"
	"github.com/tphakala/voicecap/internal/logger"
)

// Command creates the reprocess command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <input> <output>",
		Short: "Run a recording through the enhancement engine",
		Long: "Read a raw s16le, WAV or FLAC recording, enhance it frame by frame with the configured " +
			"engine and write the result. A .wav output gets a WAV header, anything else is raw s16le.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := Run(cmd.Context(), settings, args[0], args[1])
			return err
		},
	}
}

// Run enhances input into output and returns the run statistics.
func Run(ctx context.Context, settings *conf.Settings, input, output string) (stats audiocore.ReprocessStats, err error) {
	log := logger.Global().Module("reprocess")

	engine, err := enhance.NewEngine(enhance.ConfigFromSettings(settings))
	if err != nil {
		return stats, err
	}

	in, err := export.OpenInput(input)
	if err != nil {
		return stats, err
	}
	defer func() { _ = in.Close() }()

	target := export.ExpandTarget(output, uuid.New(), time.Now())
	sink, err := export.OpenSink(target)
	if err != nil {
		return stats, err
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	log.Info("reprocessing",
		logger.String("input", input),
		logger.String("output", target),
		logger.String("container", in.Format.Container),
		logger.Int("source_rate", in.Format.SampleRate),
		logger.Int("source_channels", in.Format.Channels),
		logger.Bool("converted", in.Format.Converted))

	r := audiocore.Reprocessor{Enhancer: engine, Logger: logger.Global().Module("audiocore")}
	stats, err = r.Run(ctx, in, sink)
	if err != nil {
		return stats, err
	}

	log.Info("reprocessing finished",
		logger.Int("frames", stats.Frames),
		logger.Int("processed", stats.Processed),
		logger.Int("failed", stats.Failed),
		logger.Int("trailing_samples", stats.TrailingSamples),
		logger.Duration("elapsed", stats.Duration))
	return stats, nil
}
