package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_backend/platform/config"
	"crm_backend/platform/redislock"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	requalifyMaxRetry = 3
	requalifyTimeout  = 10 * time.Minute

	// Rule edits within this window collapse into one pending task per pipeline.
	requalifyDedupWindow = time.Minute
)

// Client enqueues background tasks. A nil *Client is a valid no-op.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleRequalification queues a re-evaluation of every lead in the pipeline.
func (c *Client) ScheduleRequalification(ctx context.Context, tenantID, pipelineID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewRequalifyPipelineTask(RequalifyPipelinePayload{
		TenantID:   tenantID.String(),
		PipelineID: pipelineID.String(),
	})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(requalifyMaxRetry),
		asynq.Timeout(requalifyTimeout),
		asynq.Unique(requalifyDedupWindow),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

// redisClientOpt shares URL and TLS handling with the distribution lock client.
func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redislock.ParseOptions(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
