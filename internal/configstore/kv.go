package configstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the persisted key-value area the store reads and writes.
// Each key is written atomically; there is no cross-key transaction.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Memory is an in-process KV backend.
type Memory struct {
	items sync.Map // map[string][]byte
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.items.Load(key)
	if !ok {
		return nil, false, nil
	}
	stored, _ := v.([]byte)
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, true, nil
}

// Set replaces the value at key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.items.Store(key, stored)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, e.g. "relay:".
	Prefix string
}

// Redis is a KV backend stored in Redis.
type Redis struct {
	client *redis.Client
	prefix string
}

const connectionTimeout = 5 * time.Second

// NewRedis connects to Redis and verifies the connection. Addr is either
// host:port or a redis:// or rediss:// URL; Password and DB override the URL
// when set.
func NewRedis(opts RedisOptions) (*Redis, error) {
	clientOpts, err := redisClientOptions(opts)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(clientOpts)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{client: client, prefix: opts.Prefix}, nil
}

func redisClientOptions(opts RedisOptions) (*redis.Options, error) {
	if !strings.HasPrefix(opts.Addr, "redis://") && !strings.HasPrefix(opts.Addr, "rediss://") {
		return &redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}, nil
	}

	parsed, err := redis.ParseURL(opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.Password != "" {
		parsed.Password = opts.Password
	}
	if opts.DB != 0 {
		parsed.DB = opts.DB
	}
	return parsed, nil
}

// Get reads key; a missing key is reported as not found, not as an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set writes key without expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
