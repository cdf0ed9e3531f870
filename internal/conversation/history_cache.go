package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// historyCache keeps recent transcripts in Redis so live turns never hit
// Postgres for history reads. Postgres stays the source of truth; a cache
// miss falls back to a transcript read and a re-prime.
type historyCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func newHistoryCache(client *redis.Client, tracer trace.Tracer) *historyCache {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("voiceagent.internal.conversation.history")
	}
	return &historyCache{redis: client, tracer: tracer}
}

func (c *historyCache) Save(ctx context.Context, conversationID string, history []Message) error {
	ctx, span := c.tracer.Start(ctx, "conversation.cache_history")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey(conversationID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to cache history: %w", err)
	}
	return nil
}

// Load returns the cached transcript, or (nil, false, nil) on a miss.
func (c *historyCache) Load(ctx context.Context, conversationID string) ([]Message, bool, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.load_cached_history")
	defer span.End()

	data, err := c.redis.Get(ctx, historyKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: failed to load cached history: %w", err)
	}

	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: failed to decode cached history: %w", err)
	}
	return history, true, nil
}

func (c *historyCache) Invalidate(ctx context.Context, conversationID string) error {
	ctx, span := c.tracer.Start(ctx, "conversation.invalidate_history")
	defer span.End()

	if err := c.redis.Del(ctx, historyKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to invalidate history: %w", err)
	}
	return nil
}

func historyKey(id string) string {
	return fmt.Sprintf("conversation:history:%s", id)
}
