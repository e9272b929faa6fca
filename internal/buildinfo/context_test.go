package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewKeepsInjectedVersion(t *testing.T) {
	t.Parallel()

	info := New("v1.2.3", "2026-10-19")
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "2026-10-19", info.BuildDate)
}

func TestNewDefaultsToDev(t *testing.T) {
	t.Parallel()

	info := New("", "")
	assert.NotEmpty(t, info.Version)
	assert.NotEqual(t, "(devel)", info.Version)
}

func TestVCSRevision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings []debug.BuildSetting
		want     string
	}{
		{"none", nil, ""},
		{"short", []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}}, "abc123"},
		{"truncated", []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef0123"}}, "0123456789ab"},
		{"dirty", []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "true"},
		}, "abc123-dirty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, vcsRevision(tt.settings))
		})
	}
}

func TestReleaseAndString(t *testing.T) {
	t.Parallel()

	info := Info{Version: "v0.4.0", BuildDate: "2026-10-19", Commit: "abc123"}
	assert.Equal(t, "voicecap@0.4.0", info.Release())
	assert.Equal(t, "v0.4.0 (abc123) built 2026-10-19", info.String())
	assert.Equal(t, "dev", Info{Version: "dev"}.String())
}
