package prefs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("preference key not found")

// Provider is the key-value storage behind the preference store. A
// host-provided backend (redis) takes precedence; MemoryProvider is the
// in-process fallback. All callers treat provider failures as best-effort.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

type RedisProvider struct {
	client *redis.Client
}

func NewRedisProvider(client *redis.Client) *RedisProvider {
	return &RedisProvider{client: client}
}

func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preference %s: %w", key, err)
	}
	return data, nil
}

func (p *RedisProvider) Set(ctx context.Context, key string, value []byte) error {
	if err := p.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// MemoryProvider keeps preferences for the life of the process. Used when no
// redis backend is configured and in tests.
type MemoryProvider struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{values: make(map[string][]byte)}
}

func (p *MemoryProvider) Get(ctx context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (p *MemoryProvider) Set(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data := make([]byte, len(value))
	copy(data, value)
	p.values[key] = data
	return nil
}
