package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GanizaniSitara/controls-ux/internal/application/dto"
	"github.com/GanizaniSitara/controls-ux/internal/application/port"
	"github.com/GanizaniSitara/controls-ux/internal/domain/entity"
)

// DefaultKey holds the last known-good snapshot.
const DefaultKey = "controls:snapshot:fallback"

// Config configures the Redis connection.
type Config struct {
	Host         string
	Port         string
	Password     string
	DB           int
	Key          string
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FallbackStore keeps the last usable snapshot in one Redis key. Zero TTL keeps it forever.
type FallbackStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewFallbackStore connects to Redis and checks the connection.
func NewFallbackStore(ctx context.Context, cfg Config) (*FallbackStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewFallbackStoreWithClient(client, cfg.Key, cfg.TTL), nil
}

// NewFallbackStoreWithClient wraps an existing client.
func NewFallbackStoreWithClient(client redis.UniversalClient, key string, ttl time.Duration) *FallbackStore {
	if key == "" {
		key = DefaultKey
	}
	return &FallbackStore{client: client, key: key, ttl: ttl}
}

// Save replaces the stored snapshot.
func (s *FallbackStore) Save(ctx context.Context, snapshot *entity.CacheSnapshot) error {
	data, err := dto.EncodeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot or port.ErrNotFound.
func (s *FallbackStore) Load(ctx context.Context) (*entity.CacheSnapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	snapshot, err := dto.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Close closes the Redis connection.
func (s *FallbackStore) Close() error {
	return s.client.Close()
}
