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
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newSlogLogger(&buf, slog.LevelInfo, "json")

	logger.Debug("hidden")
	logger.With("job_id", "j-1").Info("Job submitted", "shards", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Job submitted", entry["msg"])
	assert.Equal(t, "j-1", entry["job_id"])
	assert.Equal(t, float64(4), entry["shards"])
}

func TestSlogLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newSlogLogger(&buf, slog.LevelDebug, "text")

	logger.Debug("Task leased", "shard", 2)
	assert.Contains(t, buf.String(), "msg=\"Task leased\"")
	assert.Contains(t, buf.String(), "shard=2")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := With(newSlogLogger(&buf, slog.LevelInfo, "json"), "worker", 3)
	logger.Info("Worker started")
	assert.Contains(t, buf.String(), `"worker":3`)

	assert.Equal(t, Nop(), With(Nop(), "worker", 3))
}
