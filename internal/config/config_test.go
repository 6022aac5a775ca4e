package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, "pion", cfg.Media.Engine)
	assert.Equal(t, 1, cfg.Media.Workers)
	assert.Equal(t, uint16(10000), cfg.Media.RTCMinPort)
	assert.Equal(t, 2*time.Second, cfg.Media.WorkerDeathGrace)
	assert.True(t, cfg.Calls.AllowAnonymous)
	assert.Equal(t, "drop", cfg.SlowConsumer)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte("port: 9090\nmedia:\n  engine: memory\n  workers: 3\ncalls:\n  allow_anonymous: false\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("ORBIT_MEDIA_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "memory", cfg.Media.Engine)
	assert.Equal(t, 4, cfg.Media.Workers)
	assert.False(t, cfg.Calls.AllowAnonymous)
}

func TestLoadRejectsBadEngine(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("ORBIT_MEDIA_ENGINE", "mediasoup")

	_, err := Load()
	assert.Error(t, err)
}
