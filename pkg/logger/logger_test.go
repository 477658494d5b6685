package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info", Format: "text", Output: &buf})
	require.NoError(t, err)

	log.Info("Feature not found", String("feature", "city"))
	log.Sync()

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "Feature not found")
	assert.Contains(t, out, `"feature": "city"`)
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	log.WithFields(Component("trainer")).Error("training failed", errors.New("boom"), Int("rows", 3))
	log.Sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "training failed", entry["msg"])
	assert.Equal(t, "trainer", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 3, entry["rows"])
	assert.Contains(t, entry, "timestamp")
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Warn("visible warn")
	log.Sync()
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible warn")

	require.NoError(t, log.SetLevel("debug"))
	log.Debug("now visible")
	log.Sync()
	assert.Contains(t, buf.String(), "now visible")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"", false},
		{"DEBUG", false},
		{"warning", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLevel(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "xml"))
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Info("discarded")
	log.Error("discarded", errors.New("x"))
	log.WithFields(String("k", "v")).Warn("discarded")
}
