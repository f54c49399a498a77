package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Compile-time check to ensure redisStateRepository implements StateRepository.
var _ StateRepository = (*redisStateRepository)(nil)

// Key layout:
//
//	adventure_state:{stateID} -> state JSON (with TTL)
//	user_active_state:{userID} -> stateID (same TTL)
type redisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStateRepository creates a Redis-backed StateRepository. States
// expire after ttl of inactivity; every store refreshes the clock.
func NewRedisStateRepository(client *redis.Client, ttl time.Duration, logger zerolog.Logger) StateRepository {
	return &redisStateRepository{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "RedisStateRepo").Logger(),
	}
}

func stateKey(id string) string     { return fmt.Sprintf("adventure_state:%s", id) }
func userIndexKey(id string) string { return fmt.Sprintf("user_active_state:%s", id) }

func (r *redisStateRepository) StoreState(ctx context.Context, stateJSON []byte, sessionKey string) (string, error) {
	id := sessionKey
	if id == "" {
		id = uuid.NewString()
	}
	if err := r.client.Set(ctx, stateKey(id), stateJSON, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store adventure state %s: %w", id, err)
	}
	r.logger.Debug().Str("stateID", id).Int("bytes", len(stateJSON)).Msg("adventure state stored")
	return id, nil
}

func (r *redisStateRepository) GetState(ctx context.Context, id string) ([]byte, error) {
	raw, err := r.client.Get(ctx, stateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load adventure state %s: %w", id, err)
	}
	return raw, nil
}

func (r *redisStateRepository) SetActiveState(ctx context.Context, userID, stateID string) error {
	if userID == "" {
		return nil
	}
	if err := r.client.Set(ctx, userIndexKey(userID), stateID, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to index active state for user %s: %w", userID, err)
	}
	return nil
}

func (r *redisStateRepository) ActiveStateID(ctx context.Context, userID string) (string, error) {
	id, err := r.client.Get(ctx, userIndexKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up active state for user %s: %w", userID, err)
	}
	return id, nil
}
