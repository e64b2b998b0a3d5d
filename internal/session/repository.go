package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/factory-portal/internal/domain"
	"github.com/spec-kit/factory-portal/internal/persistence"
)

// sessionKeyPrefix is the single canonical credential key. The token lives
// inside the session entry and nowhere else.
const sessionKeyPrefix = "portal:session:"

// Repository persists sessions across portal restarts and page reloads.
type Repository interface {
	Save(ctx context.Context, sess *domain.Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// RedisRepository stores sessions as TTL-bound JSON entries.
type RedisRepository struct {
	redis *persistence.Redis
}

// NewRedisRepository builds the repository.
func NewRedisRepository(r *persistence.Redis) *RedisRepository {
	return &RedisRepository{redis: r}
}

// Save writes the session under its canonical key.
func (r *RedisRepository) Save(ctx context.Context, sess *domain.Session, ttl time.Duration) error {
	encoded, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return r.redis.Client.Set(ctx, sessionKeyPrefix+sess.ID, encoded, ttl).Err()
}

// Get loads a session; a missing key returns (nil, nil).
func (r *RedisRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := r.redis.Client.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Delete removes the session entry.
func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	return r.redis.Client.Del(ctx, sessionKeyPrefix+id).Err()
}
