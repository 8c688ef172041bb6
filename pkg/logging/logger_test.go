package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"yield_sim/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZapLogger_OTelBridge(t *testing.T) {
	tel, err := telemetry.Setup("test-logger", telemetry.Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	var buf bytes.Buffer
	logger, err := New(Options{Level: "DEBUG", Output: &buf})
	require.NoError(t, err)

	logger.Info("Test OTel bridging", "key", "value")
	logger.Debug("Debug message", "status", "testing")

	out := buf.String()
	assert.Contains(t, out, "Test OTel bridging")
	assert.Contains(t, out, "Debug message")
}

func TestZapLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "WARN", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestZapLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "INFO", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.WithField("component", "rate_cache").
		WithFields(map[string]interface{}{"source": "defillama"}).
		Error("Refresh failed", "error", errors.New("timeout"), "attempt", 2)

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))

	assert.Equal(t, "Refresh failed", entry["msg"])
	assert.Equal(t, "rate_cache", entry["component"])
	assert.Equal(t, "defillama", entry["source"])
	assert.Equal(t, "timeout", entry["error"])
	assert.Equal(t, float64(2), entry["attempt"])
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{Level: "LOUD"})
	assert.Error(t, err)

	_, err = New(Options{Level: "INFO", Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "Warn", "ERROR", "FATAL"} {
		_, err := ParseLevel(lvl)
		assert.NoError(t, err, lvl)
	}
	_, err := ParseLevel("TRACE")
	assert.Error(t, err)
}
