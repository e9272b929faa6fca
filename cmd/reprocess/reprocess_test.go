package reprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/conf"
)

func bypassSettings() *conf.Settings {
	return &conf.Settings{}
}

func TestRunRawToRaw(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	input := filepath.Join(dir, "in.pcm")
	output := filepath.Join(dir, "out", "enhanced.pcm")

	pcm := make([]byte, 3*audiocore.FrameBytes+10)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(input, pcm, 0o600))

	stats, err := Run(t.Context(), bypassSettings(), input, output)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Frames)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 5, stats.TrailingSamples)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, pcm[:3*audiocore.FrameBytes], got, "bypass engine must reproduce whole frames exactly")
}

func TestRunMissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Run(t.Context(), bypassSettings(), filepath.Join(dir, "missing.pcm"), filepath.Join(dir, "out.pcm"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.pcm"))
}

func TestRunInvalidEngineConfig(t *testing.T) {
	t.Parallel()

	settings := bypassSettings()
	settings.Enhancement.NoiseSuppression = conf.NoiseSuppressionSettings{Enabled: true, Level: "deafening"}

	dir := t.TempDir()
	_, err := Run(t.Context(), settings, filepath.Join(dir, "in.pcm"), filepath.Join(dir, "out.pcm"))
	require.Error(t, err)
}

func TestCommandRequiresTwoArgs(t *testing.T) {
	t.Parallel()

	cmd := Command(bypassSettings())
	assert.Error(t, cmd.Args(cmd, []string{"only-one"}))
	assert.NoError(t, cmd.Args(cmd, []string{"in", "out"}))
}
