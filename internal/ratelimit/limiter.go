// Package ratelimit provides a sliding-window rate limiter shared by the
// tool and network gates. Budgets are keyed by caller-chosen strings (tool
// name, URL host) so one limiter instance can serve many independent
// windows.
package ratelimit

import (
	"sync"
	"time"
)

// bucket holds the admission timestamps for one key. Each bucket carries
// its own mutex so check-and-record is atomic per key without serializing
// unrelated keys.
type bucket struct {
	mu    sync.Mutex
	times []time.Time
}

// Limiter admits or rejects events against per-key sliding windows.
// An admission is recorded; a rejection never is, so a burst that hits
// the limit cannot push the window forward and starve the key.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// New returns an empty limiter.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether one more event fits inside the window for key,
// recording the admission timestamp when it does. A limit <= 0 rejects
// everything; a window <= 0 admits everything without recording.
func (l *Limiter) Allow(key string, window time.Duration, limit int) bool {
	return l.allowAt(key, window, limit, time.Now())
}

func (l *Limiter) allowAt(key string, window time.Duration, limit int, now time.Time) bool {
	if limit <= 0 {
		return false
	}
	if window <= 0 {
		return true
	}

	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(now.Add(-window))
	if len(b.times) >= limit {
		return false
	}
	b.times = append(b.times, now)
	return true
}

// Remaining returns how many admissions are left in the current window
// without consuming one.
func (l *Limiter) Remaining(key string, window time.Duration, limit int) int {
	return l.remainingAt(key, window, limit, time.Now())
}

func (l *Limiter) remainingAt(key string, window time.Duration, limit int, now time.Time) int {
	if limit <= 0 {
		return 0
	}

	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune(now.Add(-window))
	if left := limit - len(b.times); left > 0 {
		return left
	}
	return 0
}

// Reset forgets all admissions for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Len returns the number of keys currently tracked.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// bucket returns the bucket for key, creating it if needed. The fast path
// takes only the read lock; creation re-checks under the write lock so
// concurrent callers converge on one bucket.
func (l *Limiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	b = &bucket{}
	l.buckets[key] = b
	return b
}

// prune drops timestamps at or before cutoff. Callers hold b.mu.
func (b *bucket) prune(cutoff time.Time) {
	keep := b.times[:0]
	for _, t := range b.times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	b.times = keep
}
