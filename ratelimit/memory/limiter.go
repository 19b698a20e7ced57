package memorylimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limit is the max number of hits allowed per Window.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is an in-process sliding-window limiter for single-node deployments.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string][]time.Time
	now     func() time.Time
}

func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{limits: limits, buckets: make(map[string][]time.Time), now: time.Now}
}

func (l *Limiter) limitFor(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

// AllowNamed records a hit for key in bucket and reports whether it fits the window.
// Denied hits are not recorded.
func (l *Limiter) AllowNamed(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.limitFor(bucket)
	now := l.now()
	cutoff := now.Add(-lim.Window)
	k := key + ":" + bucket

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.buckets[k]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	if len(hits) >= lim.Limit {
		l.buckets[k] = hits
		return false, nil
	}
	l.buckets[k] = append(hits, now)
	return true, nil
}

// Prune drops buckets whose newest hit is older than their window.
func (l *Limiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, hits := range l.buckets {
		if len(hits) == 0 {
			delete(l.buckets, k)
			continue
		}
		// the bucket name is the suffix after the last ':'
		bucket := k
		for j := len(k) - 1; j >= 0; j-- {
			if k[j] == ':' {
				bucket = k[j+1:]
				break
			}
		}
		if now.Sub(hits[len(hits)-1]) > l.limitFor(bucket).Window {
			delete(l.buckets, k)
		}
	}
}
