package scheduler

import (
	"context"
	"fmt"
	"strconv"

	"spotter_portal_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client enqueues delivery tasks.
type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// NewClient builds a client whose tasks are retried until maxAttempts
// attempts have been made.
func NewClient(cfg config.SchedulerConfig, maxAttempts int) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:   asynq.NewClient(opt),
		queue:    queueName(cfg),
		maxRetry: maxRetry(maxAttempts),
	}, nil
}

func maxRetry(maxAttempts int) int {
	if maxAttempts <= 1 {
		return 0
	}
	return maxAttempts - 1
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDelivery implements notification.Enqueuer.
func (c *Client) EnqueueDelivery(ctx context.Context, updateID int64) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("scheduler client not configured")
	}

	task, err := NewDeliverUpdateTask(DeliverUpdatePayload{UpdateID: updateID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, c.deliveryOptions(updateID)...)
	return err
}

func (c *Client) deliveryOptions(updateID int64) []asynq.Option {
	return []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.TaskID("update-" + strconv.FormatInt(updateID, 10) + "-" + uuid.NewString()),
	}
}
