package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"whatsapp_sdr_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const turnTaskTimeout = 5 * time.Minute

type Client struct {
	client *asynq.Client
	queue  string
}

// TurnEnqueuer schedules a conversation turn task.
type TurnEnqueuer interface {
	EnqueueConversationTurn(ctx context.Context, conversationID string) error
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

// EnqueueConversationTurn queues a turn task. Several tasks for one conversation are
// harmless: the worker serializes them on the conversation lock and a task that
// finds nothing pending returns immediately.
func (c *Client) EnqueueConversationTurn(ctx context.Context, conversationID string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewConversationTurnTask(ConversationTurnPayload{ConversationID: conversationID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(5),
		asynq.Timeout(turnTaskTimeout),
	)
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
