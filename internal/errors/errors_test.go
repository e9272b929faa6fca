package errors

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (c *captureReporter) ReportError(ee *EnhancedError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reported = append(c.reported, ee)
}

func (c *captureReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderFields(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("device %q gone", "hw:1").
		Component("audiocore").
		Category(CategoryHardware).
		Priority(PriorityHigh).
		Context("operation", "open_stream").
		Build()

	assert.Equal(t, "audiocore", ee.GetComponent())
	assert.Equal(t, "audio-hardware", ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())
	assert.Equal(t, "open_stream", ee.GetContext()["operation"])
}

func TestPriorityFallback(t *testing.T) {
	ee := New(NewStd("x")).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	inner := New(NewStd("ring full")).Category(CategoryBuffer).Build()
	outer := New(fmt.Errorf("write: %w", inner)).Build()

	assert.Equal(t, CategoryBuffer, outer.Category)
	assert.True(t, IsCategory(outer, CategoryBuffer))
	assert.False(t, IsCategory(NewStd("plain"), CategoryBuffer))
}

func TestIsMatchesSentinelThroughEnhancedError(t *testing.T) {
	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrapped: %w", sentinel)).Category(CategoryState).Build()

	assert.True(t, Is(ee, sentinel))
	assert.True(t, Is(ee, &EnhancedError{Category: CategoryState}))
	assert.False(t, Is(ee, &EnhancedError{Category: CategoryAudio}))
}

func TestTelemetryReporterReceivesBuiltErrors(t *testing.T) {
	reporter := &captureReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(NewStd("boom")).Component("audiocore").Build()

	require.Len(t, reporter.reported, 1)
	assert.Equal(t, "boom", reporter.reported[0].Error())
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("audiocore").
		Category(CategoryHardware).
		Context("operation", "open_stream").
		Build()

	assert.Equal(t, "Audiocore Audio Hardware Error Open Stream", generateErrorTitle(ee))
}

func TestGetErrorLevel(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     sentry.Level
	}{
		{CategoryHardware, sentry.LevelError},
		{CategoryBuffer, sentry.LevelWarning},
		{CategoryCancellation, sentry.LevelInfo},
		{CategoryGeneric, sentry.LevelError},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, getErrorLevel(tt.category))
		})
	}
}

func TestBasicURLScrub(t *testing.T) {
	scrubbed := basicURLScrub("Error at https://sentry.example.com?api_key=secret123&token=abc")
	assert.Equal(t, "Error at https://sentry.example.com?[REDACTED]", scrubbed)

	scrubbed = basicURLScrub("Config error: api_key=secret123 is invalid")
	assert.Contains(t, scrubbed, "[API_KEY_REDACTED]")

	scrubbed = basicURLScrub("capture failed for device_id=abc-123")
	assert.False(t, strings.Contains(scrubbed, "abc-123"))
}

func TestSentryReporterDisabledIsNoop(t *testing.T) {
	ee := New(NewStd("x")).Build()
	NewSentryReporter(false).ReportError(ee)
	assert.False(t, ee.IsReported())
}
