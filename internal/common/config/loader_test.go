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

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
bot:
  min_seconds_in_stage: 60
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 50, cfg.Bot.DefaultBatchSize)
	assert.Equal(t, 500, cfg.Bot.MaxBatchSize)
	assert.Equal(t, 4, cfg.Bot.Concurrency)
	assert.Equal(t, "bot@botic.local", cfg.Bot.Identity)
	assert.Equal(t, "info", cfg.Logging.Level)

	cooldown, err := cfg.Bot.Cooldown()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cooldown)
}

func TestLoadFromFile_MissingCooldownIsAcceptedAtLoad(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	_, err = cfg.Bot.Cooldown()
	assert.Error(t, err)
}

func TestLoadFromFile_CooldownFromEnvironment(t *testing.T) {
	t.Setenv("BOT_MIN_SECONDS_IN_STAGE", "30")
	path := writeConfig(t, `
database:
  driver: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	cooldown, err := cfg.Bot.Cooldown()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cooldown)
}

func TestLoadFromFile_MalformedCooldownIsDeferredToRun(t *testing.T) {
	t.Run("yaml value", func(t *testing.T) {
		path := writeConfig(t, `
database:
  driver: memory
bot:
  min_seconds_in_stage: abc
`)
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)

		_, err = cfg.Bot.Cooldown()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `got "abc"`)
	})

	t.Run("environment value", func(t *testing.T) {
		t.Setenv("BOT_MIN_SECONDS_IN_STAGE", "1d")
		path := writeConfig(t, `
database:
  driver: memory
`)
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)

		_, err = cfg.Bot.Cooldown()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `got "1d"`)
	})
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "db.internal")
	path := writeConfig(t, `
database:
  driver: postgres
  postgres:
    host: ${TEST_PG_HOST}
    database: botic
    user: botic
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal port=5432")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "postgres host required",
			body: "database:\n  driver: postgres\n  postgres:\n    database: botic\n    user: botic\n",
			want: "database.postgres.host is required",
		},
		{
			name: "unknown driver",
			body: "database:\n  driver: sqlite\n",
			want: "database.driver must be",
		},
		{
			name: "broker required when enabled",
			body: "database:\n  driver: memory\ncamunda:\n  enabled: true\n",
			want: "camunda.broker_address is required",
		},
		{
			name: "max batch below default",
			body: "database:\n  driver: memory\nbot:\n  default_batch_size: 100\n  max_batch_size: 10\n",
			want: "bot.max_batch_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBotConfig_CooldownRejectsNegative(t *testing.T) {
	neg := "-5"
	_, err := BotConfig{MinSecondsInStage: &neg}.Cooldown()
	assert.Error(t, err)

	padded := " 90 "
	cooldown, err := BotConfig{MinSecondsInStage: &padded}.Cooldown()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cooldown)
}

func TestGetWorkerConfig_Defaults(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"pipeline-run-bot": {Enabled: false, MaxJobsActive: 1},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "pipeline-run-bot"))
	assert.True(t, IsWorkerEnabled(cfg, "pipeline-update-status"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "pipeline-update-status").MaxJobsActive)

	cfg.Camunda = CamundaConfig{MaxJobsActive: 20, Timeout: 60000}
	inherited := GetWorkerConfig(cfg, "pipeline-update-status")
	assert.Equal(t, 20, inherited.MaxJobsActive)
	assert.Equal(t, 60000, inherited.Timeout)
	assert.Equal(t, 30*time.Second, GetDuration(30000))
}
