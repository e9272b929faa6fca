package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/voicecap/cmd/devices"
	"github.com/tphakala/voicecap/cmd/record"
	"github.com/tphakala/voicecap/cmd/reprocess"
	"github.com/tphakala/voicecap/cmd/showconfig"
	"github.com/tphakala/voicecap/internal/buildinfo"
	"github.com/tphakala/voicecap/internal/conf"
	"github.com/tphakala/voicecap/internal/errors"
	"github.com/tphakala/voicecap/internal/logger"
	"github.com/tphakala/voicecap/internal/observability/tracing"
)

// shutdownTimeout bounds flushing of spans and error reports on exit
const shutdownTimeout = 5 * time.Second

// RootCommand creates the root command. The returned function releases the
// logger and telemetry set up before the subcommand ran; call it after
// Execute whether or not the command failed.
func RootCommand(info buildinfo.Info) (*cobra.Command, func()) {
	settings := &conf.Settings{}
	var configFile string
	var cleanups []func()

	rootCmd := &cobra.Command{
		Use:           "voicecap",
		Short:         "Microphone capture with speech enhancement",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config.yaml (default: search the standard config paths)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding flags: %v", err))
	}

	rootCmd.AddCommand(
		record.Command(settings),
		reprocess.Command(settings),
		devices.Command(),
		showconfig.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded

		cleanup, err := initialize(settings, info)
		cleanups = append(cleanups, cleanup...)
		return err
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		cleanups = nil
	}

	return rootCmd, cleanup
}

// initialize sets up logging and telemetry once settings are loaded. The
// returned functions must run in reverse order on exit.
func initialize(settings *conf.Settings, info buildinfo.Info) ([]func(), error) {
	var cleanups []func()

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return cleanups, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)
	cleanups = append(cleanups, func() { _ = central.Close() })

	log := central.Module("main")
	log.Debug("starting", logger.String("version", info.String()))
	if file := conf.ConfigFileUsed(); file != "" {
		log.Debug("configuration loaded", logger.String("file", file))
	}

	if settings.Sentry.Enabled {
		flush, err := errors.InitSentry(settings.Sentry.DSN, info.Release())
		if err != nil {
			log.Warn("error reporting disabled", logger.Error(err))
		} else {
			cleanups = append(cleanups, flush)
		}
	}

	if settings.Tracing.Enabled {
		shutdown := tracing.Init(central.Module("tracing"))
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Warn("tracer shutdown failed", logger.Error(err))
			}
		})
	}

	return cleanups, nil
}
