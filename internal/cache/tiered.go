package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

const DefaultTTL = 60 * time.Second

// Backend is the durable tier behind the in-memory cache.
type Backend interface {
	// Load returns the value with its remaining TTL; zero means the backend does not know it.
	Load(ctx context.Context, key string) ([]byte, time.Duration, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Tiered caches JSON-encoded values in memory and in an optional backend.
// A memory miss that hits the backend repopulates memory for the entry's remaining TTL.
type Tiered struct {
	memory  *ristretto.Cache
	backend Backend
	ttl     time.Duration
}

func NewTiered(backend Backend, ttl time.Duration) (*Tiered, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	mem, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Tiered{memory: mem, backend: backend, ttl: ttl}, nil
}

// Get decodes the cached value for key into dst and reports whether it was found.
func (t *Tiered) Get(ctx context.Context, key string, dst any) (bool, error) {
	if raw, ok := t.memory.Get(key); ok {
		if buf, ok := raw.([]byte); ok {
			return true, decode(buf, dst)
		}
	}
	if t.backend == nil {
		return false, nil
	}
	buf, remaining, ok, err := t.backend.Load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	ttl := t.ttl
	if remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	t.memory.SetWithTTL(key, buf, int64(len(buf)), ttl)
	t.memory.Wait()
	return true, decode(buf, dst)
}

// Set stores value under key. A non-positive ttl uses the default.
func (t *Tiered) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = t.ttl
	}
	buf, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	t.memory.SetWithTTL(key, buf, int64(len(buf)), ttl)
	t.memory.Wait()
	if t.backend == nil {
		return nil
	}
	return t.backend.Save(ctx, key, buf, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	t.memory.Del(key)
	if t.backend == nil {
		return nil
	}
	return t.backend.Delete(ctx, key)
}

func (t *Tiered) Close() {
	t.memory.Close()
}

func decode(buf []byte, dst any) error {
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}
