package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerRespectsLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Level: "warn", Output: &buf})

	l.Info("should be dropped")
	l.Warn("should appear: %d", 42)

	out := buf.String()
	require.NotContains(t, out, "should be dropped")
	require.Contains(t, out, "should appear: 42")
}

func TestLoggerJSONFormatEmitsFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Format: FormatJSON, Output: &buf}).With("component", "test")

	l.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "test", entry["component"])
	require.Equal(t, "hello", entry["msg"])
}

func TestOrNopNeverPanicsOnNilLogger(t *testing.T) {
	t.Parallel()
	var l Logger
	require.True(t, IsNil(l))
	require.NotPanics(t, func() {
		OrNop(l).Info("safe")
	})
}

func TestFromObservabilityWithComponentScopesLines(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := NewLogger(LogConfig{Output: &buf})
	scoped := FromObservabilityWithComponent(base, "orchestrator")

	scoped.Error("boom")

	require.True(t, strings.Contains(buf.String(), "component=orchestrator"))
}
