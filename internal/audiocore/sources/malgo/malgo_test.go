package malgo

import (
	"runtime"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/errors"
)

var testDevices = []DeviceInfo{
	{Index: 0, Name: "USB Audio Device", ID: "hw:1,0"},
	{Index: 2, Name: "HDA Intel PCH", ID: "hw:0,0", IsDefault: true},
	{Index: 3, Name: "Loopback", ID: "hw:2,0"},
}

func TestSelectDevice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
		idx  int
	}{
		{"empty picks default", "", 2},
		{"default keyword", "default", 2},
		{"sysdefault keyword", "sysdefault", 2},
		{"exact name", "Loopback", 3},
		{"decoded id", "hw:1,0", 0},
		{"partial name", "Intel", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			idx, err := selectDevice(testDevices, tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.idx, idx)
		})
	}
}

func TestSelectDeviceFallsBackToFirst(t *testing.T) {
	t.Parallel()

	devices := []DeviceInfo{{Index: 4, Name: "only"}, {Index: 5, Name: "other"}}
	idx, err := selectDevice(devices, "")
	require.NoError(t, err)
	assert.Equal(t, 4, idx)
}

func TestSelectDeviceNotFound(t *testing.T) {
	t.Parallel()

	_, err := selectDevice(testDevices, "Nonexistent")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))

	_, err = selectDevice(nil, "")
	require.Error(t, err)
}

func TestHexToASCII(t *testing.T) {
	t.Parallel()

	got, err := hexToASCII("68773a312c3000")
	require.NoError(t, err)
	assert.Equal(t, "hw:1,0", got)

	_, err = hexToASCII("not hex")
	require.Error(t, err)
}

func TestBackendForPlatform(t *testing.T) {
	t.Parallel()

	backend, err := backendForPlatform()
	switch runtime.GOOS {
	case "linux":
		require.NoError(t, err)
		assert.Equal(t, malgo.Backend(malgo.BackendAlsa), backend)
	case "windows":
		require.NoError(t, err)
		assert.Equal(t, malgo.Backend(malgo.BackendWasapi), backend)
	case "darwin":
		require.NoError(t, err)
		assert.Equal(t, malgo.Backend(malgo.BackendCoreaudio), backend)
	default:
		require.Error(t, err)
	}
}

func TestShareMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, malgo.Shared, shareMode(audiocore.SharingShared))
	assert.Equal(t, malgo.Exclusive, shareMode(audiocore.SharingExclusive))
}

func TestOpenStreamRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	valid := audiocore.CaptureConfig{
		SampleRate: audiocore.SampleRate,
		Channels:   audiocore.Channels,
		Format:     audiocore.FormatS16,
	}
	callbacks := audiocore.CaptureCallbacks{Data: func([]byte) {}, Error: func(error) {}}

	tests := []struct {
		name   string
		mutate func(*audiocore.CaptureConfig, *audiocore.CaptureCallbacks)
	}{
		{"unknown format", func(c *audiocore.CaptureConfig, _ *audiocore.CaptureCallbacks) { c.Format = audiocore.SampleFormat(7) }},
		{"no channels", func(c *audiocore.CaptureConfig, _ *audiocore.CaptureCallbacks) { c.Channels = 0 }},
		{"no sample rate", func(c *audiocore.CaptureConfig, _ *audiocore.CaptureCallbacks) { c.SampleRate = 0 }},
		{"negative period", func(c *audiocore.CaptureConfig, _ *audiocore.CaptureCallbacks) { c.PeriodFrames = -1 }},
		{"missing data callback", func(_ *audiocore.CaptureConfig, cb *audiocore.CaptureCallbacks) { cb.Data = nil }},
		{"missing error callback", func(_ *audiocore.CaptureConfig, cb *audiocore.CaptureCallbacks) { cb.Error = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, cb := valid, callbacks
			tt.mutate(&cfg, &cb)

			stream, err := NewOpener(nil).OpenStream(cfg, cb)
			require.Error(t, err)
			assert.Nil(t, stream)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestStreamStopCallback(t *testing.T) {
	t.Parallel()

	var reported []error
	var data [][]byte
	s := &stream{callbacks: audiocore.CaptureCallbacks{
		Data:  func(pcm []byte) { data = append(data, pcm) },
		Error: func(err error) { reported = append(reported, err) },
	}}

	s.onData(nil, []byte{1, 2}, 1)
	require.Len(t, data, 1)

	s.onStop()
	require.Len(t, reported, 1)
	require.ErrorIs(t, reported[0], ErrDeviceStopped)

	s.stopping.Store(true)
	s.onStop()
	assert.Len(t, reported, 1, "requested stop must not be reported")
}
