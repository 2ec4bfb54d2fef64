// internal/workers/pipeline/run-bot/config.go
package runbot

import (
	"time"

	"botic-pipeline/internal/common/config"
)

type Config struct {
	Timeout            time.Duration
	DefaultBatchSize   int
	DefaultTriggeredBy string
}

// NewConfig derives the worker settings from the application config.
func NewConfig(appCfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(appCfg, TaskType)
	return &Config{
		Timeout:            config.GetDuration(wcfg.Timeout),
		DefaultBatchSize:   appCfg.Bot.DefaultBatchSize,
		DefaultTriggeredBy: "zeebe:" + TaskType,
	}
}
