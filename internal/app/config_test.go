package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, "data.json", cfg.Storage.File)
	assert.Equal(t, "longpoll", cfg.Core.Telegram.RunMode)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
storage:
  backend: redis
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestLoadPostgresRequiresHost(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
storage:
  backend: postgres
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.host")
}

func TestLoadPostgresBackend(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
storage:
  backend: postgres
database:
  host: localhost
  port: "5432"
  user: bot
  name: bot
  sslmode: disable
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestLoadMissingTokenFails(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: memory
`)
	_, err := Load(path)
	require.Error(t, err)
}
