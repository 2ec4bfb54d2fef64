// internal/workers/pipeline/update-status/config.go
package updatestatus

import (
	"time"

	"botic-pipeline/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func NewConfig(appCfg *config.Config) *Config {
	return &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(appCfg, TaskType).Timeout),
	}
}
