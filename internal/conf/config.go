// config.go: This file contains the configuration for the voicecap application.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/voicecap/internal/logger"
)

// AudioSettings contains settings for the capture device
type AudioSettings struct {
	Source       string `yaml:"source"`       // device name or id, empty or "sysdefault" for the system default
	PeriodFrames int    `yaml:"periodframes"` // hardware callback size in samples, 0 lets the backend decide
	RingFrames   int    `yaml:"ringframes"`   // ring buffer capacity in processing frames
	SharingMode  string `yaml:"sharingmode"`  // shared or exclusive
}

// OutputSettings names the sinks a recording session writes to.
// Targets may contain {session} and {timestamp} placeholders.
type OutputSettings struct {
	Raw       string `yaml:"raw"`
	Processed string `yaml:"processed"`
}

// HighPassSettings configures the DC/rumble filter
type HighPassSettings struct {
	Enabled bool    `yaml:"enabled"`
	Cutoff  float64 `yaml:"cutoff"` // Hz
}

// EchoCancelSettings configures the adaptive echo canceller
type EchoCancelSettings struct {
	Enabled bool    `yaml:"enabled"`
	Taps    int     `yaml:"taps"`  // filter length in samples
	Step    float64 `yaml:"step"`  // NLMS step size
	Delay   int     `yaml:"delay"` // far-end reference delay in samples
}

// NoiseSuppressionSettings configures spectral noise suppression
type NoiseSuppressionSettings struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // low, moderate, high, very_high
}

// GainControlSettings configures the adaptive gain stage
type GainControlSettings struct {
	Enabled     bool    `yaml:"enabled"`
	TargetLevel float64 `yaml:"targetlevel"` // dBFS
	MaxGain     float64 `yaml:"maxgain"`     // dB
}

// EnhancementSettings groups the enhancement engine stages
type EnhancementSettings struct {
	HighPass         HighPassSettings         `yaml:"highpass"`
	EchoCancel       EchoCancelSettings       `yaml:"echocancel"`
	NoiseSuppression NoiseSuppressionSettings `yaml:"noisesuppression"`
	GainControl      GainControlSettings      `yaml:"gaincontrol"`
}

// RecordSettings controls the record command
type RecordSettings struct {
	Duration time.Duration `yaml:"duration"` // 0 records until interrupted
}

// MonitorSettings controls the pipeline health monitor
type MonitorSettings struct {
	Interval            time.Duration `yaml:"interval"`
	OverflowDiagnostics int           `yaml:"overflowdiagnostics"` // consecutive overflowing intervals before a system snapshot is logged, 0 disables
}

// TelemetrySettings controls the local metrics endpoint
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// TracingSettings controls span recording
type TracingSettings struct {
	Enabled bool `yaml:"enabled"`
}

// SentrySettings controls error reporting
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options for voicecap
type Settings struct {
	Debug       bool                 `yaml:"debug"`
	Logging     logger.LoggingConfig `yaml:"logging"`
	Audio       AudioSettings        `yaml:"audio"`
	Output      OutputSettings       `yaml:"output"`
	Enhancement EnhancementSettings  `yaml:"enhancement"`
	Record      RecordSettings       `yaml:"record"`
	Monitor     MonitorSettings      `yaml:"monitor"`
	Telemetry   TelemetrySettings    `yaml:"telemetry"`
	Tracing     TracingSettings      `yaml:"tracing"`
	Sentry      SentrySettings       `yaml:"sentry"`
}

// envPrefix is the prefix for environment overrides, e.g. VOICECAP_AUDIO_SOURCE
const envPrefix = "VOICECAP"

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
// configFile may be empty, in which case the default search paths are used
// and a missing file means defaults only.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, most specific first
func GetDefaultConfigPaths() []string {
	paths := []string{"."}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "voicecap"))
	}

	return append(paths, "/etc/voicecap")
}

// ConfigFileUsed returns the path of the loaded config file, empty when running on defaults
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ToYAML renders settings as YAML with the sentry DSN masked
func (s *Settings) ToYAML() ([]byte, error) {
	settingsCopy := *s
	if settingsCopy.Sentry.DSN != "" {
		settingsCopy.Sentry.DSN = "[REDACTED]"
	}
	return yaml.Marshal(&settingsCopy)
}
