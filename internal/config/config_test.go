package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 7666, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.TickPeriod)
	assert.Equal(t, 12, cfg.Game.VisionRange)
	assert.Equal(t, 180*time.Second, cfg.Effects.HungerThirst)
	assert.False(t, cfg.Server.UseErrorMsg)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9000
use_error_msg = true

[network]
tick_period = "250ms"

[game]
vision_range = 8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.UseErrorMsg)
	assert.Equal(t, 250*time.Millisecond, cfg.Network.TickPeriod)
	assert.Equal(t, 8, cfg.Game.VisionRange)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost", cfg.KV.Host)
	assert.Equal(t, 5*time.Second, cfg.Effects.Stamina)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9000

[kv]
host = "kv-from-file"
`), 0o644))

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("KV_HOST", "kv-from-env")
	t.Setenv("KV_DB", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "kv-from-env", cfg.KV.Host)
	assert.Equal(t, 3, cfg.KV.DB)
}

func TestEnvGarbageIgnored(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7666, cfg.Server.Port)
}
