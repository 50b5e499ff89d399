package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSession(WithComponent(New("info", "json", &buf), "review"), "abc")

	logger.Debug("hidden")
	logger.Info("opened", "frame", 40)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "opened", line["msg"])
	assert.Equal(t, "review", line[FieldComponent])
	assert.Equal(t, "abc", line[FieldSession])
	assert.Equal(t, float64(40), line["frame"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := New("info", "text", &bytes.Buffer{})
	assert.Same(t, l, OrNop(l))
}

func TestAutoFormat(t *testing.T) {
	var buf bytes.Buffer
	New("info", "auto", &buf).Info("hello")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "non-terminal writers get JSON")

	buf.Reset()
	New("info", "text", &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
