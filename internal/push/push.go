package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/metrics"
	"github.com/thereayou/loci-chat/internal/services"
)

// Job is what the delivery worker pops off the queue.
type Job struct {
	UserID   uuid.UUID         `json:"userId"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	QueuedAt time.Time         `json:"queuedAt"`
}

// Queue hands pushes to an external delivery worker through a Redis list.
type Queue struct {
	client *redis.Client
	key    string
}

func NewQueue(client *redis.Client, key string) *Queue {
	if key == "" {
		key = "push:jobs"
	}
	return &Queue{client: client, key: key}
}

func (q *Queue) Dispatch(ctx context.Context, userID uuid.UUID, p services.Push) error {
	data, err := json.Marshal(Job{
		UserID:   userID,
		Title:    p.Title,
		Body:     p.Body,
		Data:     p.Data,
		QueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push job: %w", err)
	}

	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		metrics.PushJobs.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to queue push: %w", err)
	}
	metrics.PushJobs.WithLabelValues("queued").Inc()
	return nil
}

// LogDispatcher only logs pushes. Used when no queue is configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, userID uuid.UUID, p services.Push) error {
	logger.Ctx(ctx).Debug().
		Str(logger.FieldUserID, userID.String()).
		Str("title", p.Title).
		Msg("push skipped, no queue configured")
	return nil
}
