package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		Audio: AudioSettings{
			Source:       "sysdefault",
			PeriodFrames: FrameSize,
			RingFrames:   DefaultRingFrames,
			SharingMode:  SharingShared,
		},
		Output: OutputSettings{Raw: "raw.pcm", Processed: "processed.pcm"},
		Enhancement: EnhancementSettings{
			HighPass:         HighPassSettings{Enabled: true, Cutoff: 80},
			EchoCancel:       EchoCancelSettings{Enabled: true, Taps: 480, Step: 0.1, Delay: 1920},
			NoiseSuppression: NoiseSuppressionSettings{Enabled: true, Level: NoiseLevelHigh},
			GainControl:      GainControlSettings{Enabled: true, TargetLevel: -18, MaxGain: 30},
		},
		Monitor: MonitorSettings{Interval: time.Second, OverflowDiagnostics: 5},
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"ring too small", func(s *Settings) { s.Audio.RingFrames = 1 }, "ringframes"},
		{"period larger than ring", func(s *Settings) { s.Audio.PeriodFrames = 100 * FrameSize }, "exceeds ring capacity"},
		{"bad sharing mode", func(s *Settings) { s.Audio.SharingMode = "greedy" }, "sharingmode"},
		{"same outputs", func(s *Settings) { s.Output.Processed = s.Output.Raw }, "must differ"},
		{"missing output", func(s *Settings) { s.Output.Raw = "" }, "must both be set"},
		{"cutoff above nyquist", func(s *Settings) { s.Enhancement.HighPass.Cutoff = 30000 }, "cutoff"},
		{"cutoff ignored when disabled", func(s *Settings) {
			s.Enhancement.HighPass = HighPassSettings{Enabled: false, Cutoff: 0}
		}, ""},
		{"bad step", func(s *Settings) { s.Enhancement.EchoCancel.Step = 2 }, "step"},
		{"bad level", func(s *Settings) { s.Enhancement.NoiseSuppression.Level = "max" }, "level"},
		{"positive target", func(s *Settings) { s.Enhancement.GainControl.TargetLevel = 3 }, "targetlevel"},
		{"zero interval", func(s *Settings) { s.Monitor.Interval = 0 }, "interval"},
		{"bad listen address", func(s *Settings) {
			s.Telemetry = TelemetrySettings{Enabled: true, Listen: "nope"}
		}, "telemetry.listen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationErrorAggregates(t *testing.T) {
	s := validSettings()
	s.Audio.RingFrames = 0
	s.Monitor.Interval = 0

	err := ValidateSettings(s)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}
