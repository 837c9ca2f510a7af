package cache

import (
	"context"
	"time"
)

// LayeredCache is a two-level cache: an in-process LRU in front of a shared
// Service (usually Redis).
type LayeredCache struct {
	mem    *MemoryCache
	remote Service
	memTTL time.Duration
}

func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		mem:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: remote,
		memTTL: cfg.MemoryTTL,
	}
}

// Set writes through: remote first, then memory.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := lc.remote.Set(ctx, key, data, expiration); err != nil {
		return err
	}
	return lc.mem.setRaw(key, data, lc.l1TTL(expiration))
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, err := lc.mem.getRaw(key); err == nil {
		return decode(data, dest)
	}

	var data []byte
	if err := lc.remote.Get(ctx, key, &data); err != nil {
		return err
	}
	_ = lc.mem.setRaw(key, data, lc.memTTL)
	return decode(data, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.remote.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if ok, _ := lc.mem.Exists(ctx, keys...); ok {
		return true, nil
	}
	return lc.remote.Exists(ctx, keys...)
}

func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.remote.Close()
}

func (lc *LayeredCache) l1TTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.memTTL {
		return expiration
	}
	return lc.memTTL
}
