package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfigLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := NewWithConfig(&bytes.Buffer{}, tt.level, false, true)
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
}

func TestNewWithConfigJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig(&buf, "info", false, true)

	log.Debug().Msg("hidden")
	log.Info().Int("complaint_id", 7).Msg("announced")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "announced", entry["message"])
	assert.Equal(t, float64(7), entry["complaint_id"])
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tui.log")

	log, closer, err := NewFile(path, "info")
	require.NoError(t, err)
	log.Info().Msg("written")
	require.NoError(t, closer.Close())

	assert.FileExists(t, path)
}
