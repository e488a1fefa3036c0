package push

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/services"
)

func TestQueueReportsRedisFailure(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	err := NewQueue(client, "").Dispatch(context.Background(), uuid.New(), services.Push{Title: "t", Body: "b"})
	if err == nil {
		t.Fatal("expected dispatch error with redis down")
	}
}

func TestLogDispatcherNeverFails(t *testing.T) {
	var d services.PushDispatcher = LogDispatcher{}
	if err := d.Dispatch(context.Background(), uuid.New(), services.Push{Title: "t"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
