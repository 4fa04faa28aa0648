package tle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
)

const redisKeyPrefix = "satcoms:tle:"

// ConnectRedis builds a client from a redis:// URL or a bare host:port address.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStore keeps each group's entry in a Redis hash with fields data and fetched_at.
// A single HSET writes both fields, so readers never see a mismatched pair.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
}

// NewRedisStore creates a store backed by client.
func NewRedisStore(client *redis.Client, clk clock.Clock) *RedisStore {
	return &RedisStore{client: client, clock: clk}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, group string) (Entry, error) {
	if err := validateGroup(group); err != nil {
		return Entry{}, err
	}
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+group).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("redis get %s: %w", group, err)
	}
	if len(fields) == 0 {
		return Entry{}, ErrNotFound
	}

	unix, err := strconv.ParseInt(fields["fetched_at"], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("redis entry %s has invalid fetched_at %q: %w", group, fields["fetched_at"], err)
	}

	return Entry{
		Group:     group,
		Data:      []byte(fields["data"]),
		FetchedAt: time.Unix(unix, 0).UTC(),
	}, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, group string, data []byte) error {
	if err := validateGroup(group); err != nil {
		return err
	}
	err := s.client.HSet(ctx, redisKeyPrefix+group,
		"data", data,
		"fetched_at", s.clock.Now().Unix(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis put %s: %w", group, err)
	}
	return nil
}

// AgeOf implements Store. Only the timestamp field is read.
func (s *RedisStore) AgeOf(ctx context.Context, group string) (time.Duration, error) {
	if err := validateGroup(group); err != nil {
		return 0, err
	}
	raw, err := s.client.HGet(ctx, redisKeyPrefix+group, "fetched_at").Result()
	if err == redis.Nil {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis age %s: %w", group, err)
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis entry %s has invalid fetched_at %q: %w", group, raw, err)
	}
	return s.clock.Now().Sub(time.Unix(unix, 0)), nil
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
