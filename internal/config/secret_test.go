package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSecret_Printing(t *testing.T) {
	key := Secret("ys_live_8f2c1a")

	assert.Equal(t, "[REDACTED]", key.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", key))
	assert.Equal(t, `"[REDACTED]"`, fmt.Sprintf("%#v", key))
	assert.Equal(t, "ys_live_8f2c1a", key.Reveal())

	empty := Secret("")
	assert.Equal(t, "", empty.String())
	assert.Equal(t, `""`, fmt.Sprintf("%#v", empty))
}

func TestSecret_IsSet(t *testing.T) {
	assert.True(t, Secret("k").IsSet())
	assert.False(t, Secret("").IsSet())
	assert.False(t, Secret(" \t ").IsSet())
}

func TestSecret_ServerConfigEncodings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.APIKeys = []Secret{"ys_live_8f2c1a", "ys_live_77d0e4"}

	out, err := yaml.Marshal(cfg.Server)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "ys_live_")
	assert.Contains(t, string(out), "[REDACTED]")

	data, err := json.Marshal(cfg.Server.APIKeys)
	require.NoError(t, err)
	assert.JSONEq(t, `["[REDACTED]","[REDACTED]"]`, string(data))

	assert.NotContains(t, fmt.Sprintf("%+v", cfg.Server), "ys_live_")
	assert.NotContains(t, fmt.Sprintf("%#v", cfg.Server), "ys_live_")

	// The validator still gets the raw keys
	assert.Equal(t, []string{"ys_live_8f2c1a", "ys_live_77d0e4"}, cfg.APIKeyStrings())
}

func TestSecret_LoadedFromEnv(t *testing.T) {
	t.Setenv("TEST_SECRET_API_KEY", "ys_env_key")
	path := writeTemp(t, "config.yaml", "server:\n  api_keys: [\"${TEST_SECRET_API_KEY}\"]\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ys_env_key"}, cfg.APIKeyStrings())
	assert.NotContains(t, cfg.String(), "ys_env_key")
}
