package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile writes a config.yaml under a fake home directory and
// returns its path. HOME is redirected so the allowed-directory check and
// the default path both resolve inside the test sandbox.
func writeConfigFile(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "taskd")
	require.NoError(t, os.MkdirAll(dir, 0700))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9420, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 20.0, cfg.Server.RateLimit)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadWithFile_ReadsYAML(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9999
  shutdown_timeout: 30s
nats:
  url: nats://db.internal:4222
auth:
  token_secret: file-secret
  token_ttl: 1h
logging:
  level: debug
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "nats://db.internal:4222", cfg.NATS.URL)
	assert.Equal(t, "file-secret", cfg.Auth.TokenSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9999
`, 0600)

	t.Setenv("TASKD_SERVER_PORT", "7777")
	t.Setenv("TASKD_NATS_URL", "nats://env.internal:4222")
	t.Setenv("TASKD_AUTH_TOKEN_SECRET", "env-secret")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "nats://env.internal:4222", cfg.NATS.URL)
	assert.Equal(t, "env-secret", cfg.Auth.TokenSecret)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadWithFile(filepath.Join(home, ".config", "taskd", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9420, cfg.Server.Port)
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9999\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_AllowsReadOnlyFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9999\n", 0400)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadWithFile_RejectsPathOutsideAllowedDirs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	outside := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(outside, []byte("server:\n  port: 9999\n"), 0600))

	_, err := LoadWithFile(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file must be in")
}

func TestLoadWithFile_RejectsInvalidPort(t *testing.T) {
	writeConfigFile(t, "server:\n  port: 99999\n", 0600)

	_, err := LoadWithFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := EnsureConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "taskd"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var cfg Config
		applyDefaults(&cfg)
		return cfg
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.NATS.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Auth.TokenTTL = -time.Hour
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}
