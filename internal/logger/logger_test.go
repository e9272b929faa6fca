package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerWritesFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC).Module("audiocore")

	log.Info("frame processed",
		String("sink", "raw"),
		Int("samples", 480),
		Uint64("overflow", 3),
		Float64("ratio", 0.123456),
		Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=audiocore")
	assert.Contains(t, out, "sink=raw")
	assert.Contains(t, out, "samples=480")
	assert.Contains(t, out, "overflow=3")
	assert.Contains(t, out, "ratio=0.123")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.NotContains(t, out, "time=")
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelWarn, time.UTC)

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestTraceLevelLabel(t *testing.T) {
	buf := &bytes.Buffer{}
	NewSlogLogger(buf, LogLevelTrace, time.UTC).Trace("deep")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestWithAccumulatesAndModuleNests(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewSlogLogger(buf, LogLevelInfo, time.UTC).Module("audiocore")
	child := base.With(String("session", "abc")).Module("consumer")

	child.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "module=audiocore.consumer")
	assert.Contains(t, out, "session=abc")

	buf.Reset()
	base.Info("parent")
	assert.NotContains(t, buf.String(), "session=abc")
}

func TestWithContextAddsTraceID(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, time.UTC)

	log.WithContext(WithTraceID(t.Context(), "t-1")).Info("x")
	assert.Contains(t, buf.String(), "trace_id=t-1")

	assert.Same(t, log, log.WithContext(t.Context()))
}

func TestErrorFieldNil(t *testing.T) {
	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"quiet": "error"},
	})
	require.NoError(t, err)

	cl.Module("audiocore").Info("started", Int("frame_size", 480))
	cl.Module("quiet").Info("suppressed")
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"module":"audiocore"`)
	assert.Contains(t, string(data), `"frame_size":480`)
	assert.NotContains(t, string(data), "suppressed")
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)

	_, err = NewCentralLogger(nil)
	assert.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	assert.NotNil(t, Global())
	assert.NotNil(t, Global().Module("test"))
}
