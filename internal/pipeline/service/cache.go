package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"botic-pipeline/internal/common/logger"
	"botic-pipeline/internal/models"
)

// JobCache holds finalized bot jobs. A nil *JobCache or nil client is a
// disabled cache; every method is safe to call on it.
type JobCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewJobCache(client *redis.Client, ttl time.Duration, log logger.Logger) *JobCache {
	if client == nil {
		return nil
	}
	return &JobCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "job-cache"}),
	}
}

func jobCacheKey(id int64) string {
	return fmt.Sprintf("botjob:%d", id)
}

// Get returns the cached job, or false on a miss or any cache error.
func (c *JobCache) Get(ctx context.Context, id int64) (*models.BotJob, bool) {
	if c == nil {
		return nil, false
	}

	val, err := c.client.Get(ctx, jobCacheKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("job cache read failed", map[string]interface{}{"jobId": id})
		return nil, false
	}

	var job models.BotJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		c.logger.WithError(err).Warn("job cache entry corrupt", map[string]interface{}{"jobId": id})
		return nil, false
	}
	return &job, true
}

// Put stores a finalized job. Running jobs are never cached.
func (c *JobCache) Put(ctx context.Context, job *models.BotJob) {
	if c == nil || job == nil || !job.Finished() {
		return
	}

	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, jobCacheKey(job.ID), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("job cache write failed", map[string]interface{}{"jobId": job.ID})
	}
}

func (c *JobCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
