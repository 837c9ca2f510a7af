package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	key      string
	value    []byte
	expireAt time.Time
}

// MemoryCache is an in-process LRU cache with per-entry expiry.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: time.Minute,
		DefaultTTL:      time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1
	}

	mc := &MemoryCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		ttl:     cfg.DefaultTTL,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.cleanupExpired(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return mc.setRaw(key, data, expiration)
}

func (mc *MemoryCache) setRaw(key string, data []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = mc.ttl
	}
	expireAt := mc.now().Add(expiration)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if el, ok := mc.items[key]; ok {
		it := el.Value.(*memoryItem)
		it.value = data
		it.expireAt = expireAt
		mc.order.MoveToFront(el)
		return nil
	}
	for mc.order.Len() >= mc.maxSize {
		mc.removeElement(mc.order.Back())
	}
	mc.items[key] = mc.order.PushFront(&memoryItem{key: key, value: data, expireAt: expireAt})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, err := mc.getRaw(key)
	if err != nil {
		return err
	}
	return decode(data, dest)
}

func (mc *MemoryCache) getRaw(key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	it := el.Value.(*memoryItem)
	if mc.now().After(it.expireAt) {
		mc.removeElement(el)
		return nil, ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	return it.value, nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if el, ok := mc.items[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	for _, key := range keys {
		if el, ok := mc.items[key]; ok && !now.After(el.Value.(*memoryItem).expireAt) {
			return true, nil
		}
	}
	return false, nil
}

// Len reports the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryItem).key)
}

func (mc *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := mc.now()
			for el := mc.order.Back(); el != nil; {
				prev := el.Prev()
				if now.After(el.Value.(*memoryItem).expireAt) {
					mc.removeElement(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		case <-mc.stop:
			return
		}
	}
}

// Close stops the cleanup loop.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.stop) })
	return nil
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}

func decode(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = append([]byte(nil), data...)
		return nil
	case *string:
		*d = string(data)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}
