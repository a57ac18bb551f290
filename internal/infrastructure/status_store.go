package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourusername/yuna-go/internal/domain"
)

// MemoryStatusStore keeps the last event per entry in process memory
type MemoryStatusStore struct {
	mu     sync.RWMutex
	events map[domain.EntryKey]domain.ProgressEvent
}

// NewMemoryStatusStore creates an empty store
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{events: make(map[domain.EntryKey]domain.ProgressEvent)}
}

func (s *MemoryStatusStore) Set(_ context.Context, event domain.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Key()] = event
	return nil
}

// Get returns nil when nothing was recorded for the entry
func (s *MemoryStatusStore) Get(_ context.Context, key domain.EntryKey) (*domain.ProgressEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[key]
	if !ok {
		return nil, nil
	}
	return &event, nil
}

func (s *MemoryStatusStore) Delete(_ context.Context, key domain.EntryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, key)
	return nil
}

// RedisStatusStore shares status across processes through redis
type RedisStatusStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore connects and pings the server
func NewRedisStatusStore(ctx context.Context, cfg domain.StatusConfig) (*RedisStatusStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return &RedisStatusStore{client: client, prefix: "yuna:status:", ttl: cfg.TTL}, nil
}

func (s *RedisStatusStore) key(k domain.EntryKey) string {
	return s.prefix + string(k.Kind) + ":" + k.Name
}

func (s *RedisStatusStore) Set(ctx context.Context, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(event.Key()), data, s.ttl).Err()
}

func (s *RedisStatusStore) Get(ctx context.Context, key domain.EntryKey) (*domain.ProgressEvent, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var event domain.ProgressEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("corrupt status for %s: %w", key, err)
	}
	return &event, nil
}

func (s *RedisStatusStore) Delete(ctx context.Context, key domain.EntryKey) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Close closes the redis client
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}

// NewStatusStore picks the backend named in configuration
func NewStatusStore(ctx context.Context, cfg domain.StatusConfig) (domain.StatusStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStatusStore(), nil
	case "redis":
		return NewRedisStatusStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown status backend: %s", cfg.Backend)
	}
}

// StatusSink records every event in a status store
type StatusSink struct {
	store domain.StatusStore
}

// NewStatusSink wraps a store as a notifier sink
func NewStatusSink(store domain.StatusStore) *StatusSink {
	return &StatusSink{store: store}
}

func (s *StatusSink) Name() string { return "status" }

func (s *StatusSink) Handle(event domain.ProgressEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.store.Set(ctx, event)
}
