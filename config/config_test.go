package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
rabbitmq:
  host: mq.internal
  exchange: crawler
  channels:
    fast:
      prefetch: 200
crawler:
  stages:
    index:
      enabled: true
      prefetch: 200
      channel: fast
  rate_limit:
    interval: 2s
    burst: 3
  media_ids:
    - otakudesu
    - samehadaku
database:
  mysql:
    host: db.internal
    dbname: anime
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "mq.internal", cfg.RabbitMQ.Host)
	assert.Equal(t, 200, cfg.RabbitMQ.Channels["fast"].Prefetch)
	assert.Equal(t, 10, cfg.RabbitMQ.Channels["normal"].Prefetch, "default class survives partial override")
	assert.Equal(t, 2*time.Second, cfg.Crawler.RateLimit.Interval)
	assert.Equal(t, 3, cfg.Crawler.RateLimit.Burst)
	assert.Equal(t, []string{"otakudesu", "samehadaku"}, cfg.Crawler.MediaIDs)
	assert.Equal(t, "db.internal", cfg.Database.MySQL.Host)
	assert.Equal(t, 3306, cfg.Database.MySQL.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MYSQL_HOST", "env-db")
	t.Setenv("CRAWLER_RATE_INTERVAL", "500ms")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-db", cfg.Database.MySQL.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawler.RateLimit.Interval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStage(t *testing.T) {
	cfg := Default()

	index := cfg.Stage("index")
	assert.True(t, index.Enabled)
	assert.Equal(t, "fast", index.Channel)
	assert.Equal(t, 5, index.Prefetch)

	unknown := cfg.Stage("nope")
	assert.False(t, unknown.Enabled)
	assert.Equal(t, "normal", unknown.Channel)
}

func TestLoadPartialStageKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "crawler:\n  stages:\n    detail:\n      prefetch: 200\n"))
	require.NoError(t, err)

	assert.Equal(t, StageConfig{Enabled: true, Prefetch: 200, Channel: "fast"}, cfg.Stage("detail"))
	assert.Equal(t, StageConfig{Enabled: true, Prefetch: 5, Channel: "fast"}, cfg.Stage("index"))
	assert.Equal(t, StageConfig{Enabled: true, Prefetch: 5, Channel: "normal"}, cfg.Stage("episode"))
}

func TestLoadStageCanBeDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "crawler:\n  stages:\n    link:\n      enabled: false\n"))
	require.NoError(t, err)

	link := cfg.Stage("link")
	assert.False(t, link.Enabled)
	assert.Equal(t, "fast", link.Channel)
	assert.Equal(t, 5, link.Prefetch)
}
