package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "min-creds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
services:
  db:
    credentials:
      - user: alice
        password: hunter2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultListenOn, cfg.ListenOn)
	assert.Equal(t, defaultWebPath, cfg.WebPath)
	assert.Equal(t, defaultLeaseTimeoutSecs, cfg.Services["db"].LeaseTimeoutSecs)
	assert.Equal(t, defaultNumConcurrent, cfg.Services["db"].Credentials[0].NumConcurrent)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
}

func TestLoadHonorsExplicitLogSettings(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
log_file: /tmp/min-creds.log
services:
  db:
    credentials:
      - user: alice
        password: hunter2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/min-creds.log", cfg.LogFile)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level: deafening
services:
  db:
    credentials:
      - user: alice
        password: hunter2
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
listen_on: "0.0.0.0:8080"
web_path: "/api/"
services:
  db:
    lease_timeout_secs: 60
    credentials:
      - user: alice
        password: hunter2
        num_concurrent: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.ListenOn)
	assert.Equal(t, "/api/", cfg.WebPath)
	assert.Equal(t, 60, cfg.Services["db"].LeaseTimeoutSecs)
	assert.Equal(t, 3, cfg.Services["db"].Credentials[0].NumConcurrent)
}

func TestLoadRejectsServiceWithNoCredentials(t *testing.T) {
	path := writeConfig(t, `
services:
  db:
    credentials: []
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsCredentialWithEmptyUser(t *testing.T) {
	path := writeConfig(t, `
services:
  db:
    credentials:
      - user: ""
        password: hunter2
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
