package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: s3cret\n")

	require.NoError(t, LoadFile(path))
	assert.Equal(t, ":8080", C.Server.Port)
	assert.Equal(t, "s3cret", C.JWT.Secret)
	assert.Equal(t, 24*time.Hour, C.JWT.TTL)
	assert.Equal(t, "redis", C.Store.Backend)
	assert.Equal(t, 30*time.Second, C.Game.TurnTimeout)
	assert.False(t, C.Game.ShuffleDecks)
}

func TestLoadFileValuesAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":9000"
redis:
  addr: "redis:6379"
  db: 2
store:
  backend: memory
game:
  turn_timeout: 10s
  shuffle_decks: true
  seed: 99
`)
	t.Setenv("TRIAD_GAME_TURN_TIMEOUT", "5s")

	require.NoError(t, LoadFile(path))
	assert.Equal(t, ":9000", C.Server.Port)
	assert.Equal(t, "redis:6379", C.Redis.Addr)
	assert.Equal(t, 2, C.Redis.DB)
	assert.Equal(t, "memory", C.Store.Backend)
	assert.Equal(t, 5*time.Second, C.Game.TurnTimeout)
	assert.True(t, C.Game.ShuffleDecks)
	assert.Equal(t, int64(99), C.Game.Seed)
}

func TestLoadFileMissing(t *testing.T) {
	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "nope.yaml")))
}
