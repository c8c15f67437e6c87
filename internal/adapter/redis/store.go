// Package redis implements the shared edge tier of the geocode cache on top
// of a Redis server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Store reads and writes JSON-encoded geocodes with per-key expiry.
type Store struct {
	cli *goredis.Client
}

// NewStore wraps an existing client.
func NewStore(cli *goredis.Client) *Store {
	return &Store{cli: cli}
}

// Dial parses a redis:// URL and verifies the server is reachable.
func Dial(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := goredis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{cli: cli}, nil
}

func (s *Store) Get(ctx context.Context, key string) (domain.CachedGeocode, bool, error) {
	raw, err := s.cli.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.CachedGeocode{}, false, nil
	}
	if err != nil {
		return domain.CachedGeocode{}, false, fmt.Errorf("redis get: %w", err)
	}
	var v domain.CachedGeocode
	if err := json.Unmarshal(raw, &v); err != nil {
		return domain.CachedGeocode{}, false, fmt.Errorf("decode cached geocode: %w", err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key string, v domain.CachedGeocode, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cached geocode: %w", err)
	}
	if err := s.cli.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.cli.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping reports whether the server answers; used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.cli.Close()
}
