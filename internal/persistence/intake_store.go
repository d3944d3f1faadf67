package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/handoff-service/internal/domain"
)

const intakeKeyPrefix = "intake:session:"

// RedisIntakeStore keeps intake dialogue sessions in Redis with a TTL, so an
// abandoned dialogue expires instead of wedging the channel.
type RedisIntakeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIntakeStore builds the store.
func NewRedisIntakeStore(r *Redis, ttl time.Duration) *RedisIntakeStore {
	var client *redis.Client
	if r != nil {
		client = r.Client
	}
	return &RedisIntakeStore{client: client, ttl: ttl}
}

// Get returns the session for a channel, or nil when none is active.
func (s *RedisIntakeStore) Get(ctx context.Context, channelID string) (*domain.IntakeSession, error) {
	if s.client == nil {
		return nil, errors.New("redis client not configured")
	}
	raw, err := s.client.Get(ctx, intakeKeyPrefix+channelID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session domain.IntakeSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Put stores the session, refreshing the TTL.
func (s *RedisIntakeStore) Put(ctx context.Context, session *domain.IntakeSession) error {
	if s.client == nil {
		return errors.New("redis client not configured")
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, intakeKeyPrefix+session.ChannelID, raw, s.ttl).Err()
}

// Delete removes the session; absent keys are not an error.
func (s *RedisIntakeStore) Delete(ctx context.Context, channelID string) error {
	if s.client == nil {
		return errors.New("redis client not configured")
	}
	return s.client.Del(ctx, intakeKeyPrefix+channelID).Err()
}
