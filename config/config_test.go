package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  uri: mongodb://localhost:27017/sparhub\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []int{3, 6, 8}, cfg.Session.AllowedRounds)
	assert.Equal(t, 3, cfg.Session.DefaultRounds)
	assert.Equal(t, 20*time.Second, cfg.ReplyTimeout())
	assert.Equal(t, 30*time.Second, cfg.VerdictTimeout())
	assert.Equal(t, 5*time.Minute, cfg.ReaperSweep())
	assert.Equal(t, 15*time.Minute, cfg.ReaperThreshold())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `server:
  port: 9000
session:
  allowedRounds: [2, 4]
reaper:
  sweepMinutes: 1
  thresholdMinutes: 3
gemini:
  replyTimeoutSeconds: 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []int{2, 4}, cfg.Session.AllowedRounds)
	assert.Equal(t, 2, cfg.Session.DefaultRounds)
	assert.Equal(t, 5*time.Second, cfg.ReplyTimeout())
	assert.Equal(t, time.Minute, cfg.ReaperSweep())
	assert.Equal(t, 3*time.Minute, cfg.ReaperThreshold())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
