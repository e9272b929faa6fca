// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/voicecap/internal/logger"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.fileoutput.enabled", false)
	viper.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	viper.SetDefault("logging.fileoutput.maxsize", logger.DefaultMaxSize)
	viper.SetDefault("logging.fileoutput.maxage", logger.DefaultMaxAge)
	viper.SetDefault("logging.fileoutput.maxrotatedfiles", logger.DefaultMaxRotatedFiles)
	viper.SetDefault("logging.fileoutput.compress", false)
	viper.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)

	viper.SetDefault("audio.source", "sysdefault")
	viper.SetDefault("audio.periodframes", FrameSize)
	viper.SetDefault("audio.ringframes", DefaultRingFrames)
	viper.SetDefault("audio.sharingmode", SharingShared)

	viper.SetDefault("output.raw", "recordings/source.pcm")
	viper.SetDefault("output.processed", "recordings/record.pcm")

	viper.SetDefault("enhancement.highpass.enabled", true)
	viper.SetDefault("enhancement.highpass.cutoff", 80.0)
	viper.SetDefault("enhancement.echocancel.enabled", true)
	viper.SetDefault("enhancement.echocancel.taps", 480)
	viper.SetDefault("enhancement.echocancel.step", 0.1)
	viper.SetDefault("enhancement.echocancel.delay", 1920)
	viper.SetDefault("enhancement.noisesuppression.enabled", true)
	viper.SetDefault("enhancement.noisesuppression.level", NoiseLevelHigh)
	viper.SetDefault("enhancement.gaincontrol.enabled", true)
	viper.SetDefault("enhancement.gaincontrol.targetlevel", -18.0)
	viper.SetDefault("enhancement.gaincontrol.maxgain", 30.0)

	viper.SetDefault("record.duration", 20*time.Second)

	viper.SetDefault("monitor.interval", time.Second)
	viper.SetDefault("monitor.overflowdiagnostics", 5)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "127.0.0.1:8090")

	viper.SetDefault("tracing.enabled", false)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
