// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateAudioSettings,
		validateOutputSettings,
		validateEnhancementSettings,
		validateMonitorSettings,
		validateTelemetrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAudioSettings(settings *Settings) error {
	audio := &settings.Audio

	if audio.RingFrames < MinRingFrames {
		return fmt.Errorf("audio.ringframes must be at least %d, got %d", MinRingFrames, audio.RingFrames)
	}
	if audio.PeriodFrames < 0 {
		return fmt.Errorf("audio.periodframes must not be negative, got %d", audio.PeriodFrames)
	}
	if audio.PeriodFrames > audio.RingFrames*FrameSize {
		return fmt.Errorf("audio.periodframes %d exceeds ring capacity of %d samples", audio.PeriodFrames, audio.RingFrames*FrameSize)
	}

	switch strings.ToLower(audio.SharingMode) {
	case SharingShared, SharingExclusive:
	default:
		return fmt.Errorf("audio.sharingmode must be %q or %q, got %q", SharingShared, SharingExclusive, audio.SharingMode)
	}

	return nil
}

func validateOutputSettings(settings *Settings) error {
	if settings.Output.Raw == "" || settings.Output.Processed == "" {
		return fmt.Errorf("output.raw and output.processed must both be set")
	}
	if settings.Output.Raw == settings.Output.Processed {
		return fmt.Errorf("output.raw and output.processed must differ, both are %q", settings.Output.Raw)
	}
	return nil
}

func validateEnhancementSettings(settings *Settings) error {
	enh := &settings.Enhancement

	if enh.HighPass.Enabled && (enh.HighPass.Cutoff <= 0 || enh.HighPass.Cutoff >= SampleRate/2) {
		return fmt.Errorf("enhancement.highpass.cutoff must be between 0 and %d Hz, got %v", SampleRate/2, enh.HighPass.Cutoff)
	}

	if enh.EchoCancel.Enabled {
		if enh.EchoCancel.Taps <= 0 {
			return fmt.Errorf("enhancement.echocancel.taps must be positive, got %d", enh.EchoCancel.Taps)
		}
		if enh.EchoCancel.Step <= 0 || enh.EchoCancel.Step > 1 {
			return fmt.Errorf("enhancement.echocancel.step must be in (0, 1], got %v", enh.EchoCancel.Step)
		}
		if enh.EchoCancel.Delay < 0 {
			return fmt.Errorf("enhancement.echocancel.delay must not be negative, got %d", enh.EchoCancel.Delay)
		}
	}

	switch enh.NoiseSuppression.Level {
	case NoiseLevelLow, NoiseLevelModerate, NoiseLevelHigh, NoiseLevelVeryHigh:
	default:
		return fmt.Errorf("enhancement.noisesuppression.level %q is not one of low, moderate, high, very_high", enh.NoiseSuppression.Level)
	}

	if enh.GainControl.Enabled {
		if enh.GainControl.TargetLevel >= 0 {
			return fmt.Errorf("enhancement.gaincontrol.targetlevel must be below 0 dBFS, got %v", enh.GainControl.TargetLevel)
		}
		if enh.GainControl.MaxGain < 0 {
			return fmt.Errorf("enhancement.gaincontrol.maxgain must not be negative, got %v", enh.GainControl.MaxGain)
		}
	}

	return nil
}

func validateMonitorSettings(settings *Settings) error {
	if settings.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %v", settings.Monitor.Interval)
	}
	if settings.Monitor.OverflowDiagnostics < 0 {
		return fmt.Errorf("monitor.overflowdiagnostics must not be negative, got %d", settings.Monitor.OverflowDiagnostics)
	}
	return nil
}

func validateTelemetrySettings(settings *Settings) error {
	if !settings.Telemetry.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Telemetry.Listen); err != nil {
		return fmt.Errorf("telemetry.listen %q is not a valid host:port: %w", settings.Telemetry.Listen, err)
	}
	return nil
}
