package memorystore

import (
	"context"
	"sync"
	"time"
)

type kvItem struct {
	value   []byte
	expires time.Time
}

// KV is a simple in-memory key-value store with TTL support.
// It is only safe for single-process deployments.
type KV struct {
	mu    sync.Mutex
	items map[string]kvItem
}

func NewKV() *KV {
	return &KV{items: make(map[string]kvItem)}
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	k.items[key] = kvItem{value: append([]byte(nil), value...), expires: exp}
	return nil
}

// Take returns the value and removes it in one step.
func (k *KV) Take(ctx context.Context, key string) ([]byte, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	it, ok := k.items[key]
	if !ok {
		return nil, false, nil
	}
	delete(k.items, key)
	if !it.expires.IsZero() && time.Now().After(it.expires) {
		return nil, false, nil
	}
	return it.value, true, nil
}
