package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Server   ServerConfig            `mapstructure:"server"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Bot      BotConfig               `mapstructure:"bot"`
	Pipeline PipelineConfig          `mapstructure:"pipeline"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig is optional: an empty address disables the job cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// BotConfig holds the automated-advancement settings.
type BotConfig struct {
	// MinSecondsInStage is the cooldown between automated moves of one
	// application, in whole seconds. It is kept raw so that a missing or
	// malformed value fails the bot run instead of the process start.
	MinSecondsInStage *string `mapstructure:"min_seconds_in_stage"`
	DefaultBatchSize  int     `mapstructure:"default_batch_size"`
	MaxBatchSize      int     `mapstructure:"max_batch_size"`
	Concurrency       int     `mapstructure:"concurrency"`
	ScheduleInterval  int     `mapstructure:"schedule_interval"` // seconds, 0 disables
	SchedulerIdentity string  `mapstructure:"scheduler_identity"`
	Identity          string  `mapstructure:"identity"`
	JobCacheTTL       int     `mapstructure:"job_cache_ttl"` // seconds
}

// Cooldown returns the configured minimum time in stage.
func (b BotConfig) Cooldown() (time.Duration, error) {
	if b.MinSecondsInStage == nil {
		return 0, fmt.Errorf("bot.min_seconds_in_stage is not configured")
	}
	raw := strings.TrimSpace(*b.MinSecondsInStage)
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("bot.min_seconds_in_stage must be an integer number of seconds, got %q", raw)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("bot.min_seconds_in_stage must not be negative, got %d", seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

type PipelineConfig struct {
	RestrictTechnicalManual bool `mapstructure:"restrict_technical_manual"`
}
