package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultStateTTL = 24 * time.Hour

// RedisStore keeps per-conversation meeting state in Redis with a TTL, so
// abandoned conversations age out on their own.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed StateStore. A non-positive ttl falls
// back to 24 hours.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("meetingbot.internal.conversation.state"),
	}
}

func (s *RedisStore) Load(ctx context.Context, conversationID string) (MeetingState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return MeetingState{}, nil
		}
		span.RecordError(err)
		return MeetingState{}, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var state MeetingState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return MeetingState{}, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, conversationID string, state MeetingState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_state")
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

func stateKey(id string) string {
	return fmt.Sprintf("meeting_state:%s", id)
}
