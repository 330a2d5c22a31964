package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("subscription registered", zap.String("destination", "webhook"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "subscription registered", entry["message"])
	assert.Equal(t, "webhook", entry["destination"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)

	logger.Debug("routing", zap.Int("deliveries", 2))
	require.NoError(t, logger.Sync())

	assert.Contains(t, buf.String(), "DEBUG")
	assert.Contains(t, buf.String(), "routing")
	assert.Contains(t, buf.String(), `{"deliveries": 2}`)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{Level: "loud", Format: "json"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(Config{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "invalid log format")
}
