package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/flashloan-bot/business/arbitrage/domain"
	"github.com/fd1az/flashloan-bot/internal/apperror"
)

// Stats from past days are only read until the daily rollover, so a two
// day retention window is enough.
const statsRetention = 48 * time.Hour

// RedisStore persists daily stats as JSON blobs keyed by day, so loss
// limits and failure streaks survive process restarts.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store over an existing redis client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "flasharb"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(day string) string {
	return fmt.Sprintf("%s:risk:daily:%s", s.prefix, day)
}

// Load fetches the stats for a day, returning a fresh block when the key
// does not exist.
func (s *RedisStore) Load(ctx context.Context, day string) (*domain.DailyRiskStats, error) {
	raw, err := s.client.Get(ctx, s.key(day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewDailyRiskStats(day), nil
	}
	if err != nil {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithMessage("loading daily risk stats"),
			apperror.WithCause(err),
		)
	}

	var stats domain.DailyRiskStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithMessage("decoding daily risk stats"),
			apperror.WithCause(err),
		)
	}
	return &stats, nil
}

// Save writes the stats under their day key with the retention TTL.
func (s *RedisStore) Save(ctx context.Context, stats *domain.DailyRiskStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return apperror.New(apperror.CodeInternalError,
			apperror.WithMessage("encoding daily risk stats"),
			apperror.WithCause(err),
		)
	}

	if err := s.client.Set(ctx, s.key(stats.Day), raw, statsRetention).Err(); err != nil {
		return apperror.New(apperror.CodeInternalError,
			apperror.WithMessage("saving daily risk stats"),
			apperror.WithCause(err),
		)
	}
	return nil
}
