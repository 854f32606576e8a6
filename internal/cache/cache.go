// Package cache implements the fingerprint-keyed result cache: a deterministic
// digest of the request-identifying fields maps to a previously serialized
// snapshot with a time-to-live.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fingerprint digests the tuple identifying a browse request. Identical inputs
// always produce identical keys and any field difference changes the key. The
// fields are length-prefix framed before hashing so no two distinct tuples can
// collide by concatenation.
func Fingerprint(url, method, body, engine string) string {
	h := sha256.New()
	for _, field := range []string{url, method, body, engine} {
		var frame [8]byte
		n := len(field)
		for i := 0; i < 8; i++ {
			frame[7-i] = byte(n >> (8 * i))
		}
		h.Write(frame[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentFingerprint digests a single payload, used by the transform endpoints
// that cache by input content.
func ContentFingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// Store is a concurrent TTL cache of serialized payloads. Expired entries
// behave as absent on read; they are only physically removed when touched or
// when the optional janitor sweeps.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	hits   prometheus.Counter
	misses prometheus.Counter

	stopJanitor chan struct{}
	janitorOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source; tests use it to force expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCounters wires hit/miss counters.
func WithCounters(hits, misses prometheus.Counter) Option {
	return func(s *Store) {
		s.hits = hits
		s.misses = misses
	}
}

// NewStore creates an empty cache.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:     make(map[string]entry),
		now:         time.Now,
		stopJanitor: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the payload stored under key, or false when the key is absent
// or its entry has expired.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || s.now().After(e.expiresAt) {
		if ok {
			// Lazily drop the expired entry.
			s.mu.Lock()
			if cur, still := s.entries[key]; still && s.now().After(cur.expiresAt) {
				delete(s.entries, key)
			}
			s.mu.Unlock()
		}
		if s.misses != nil {
			s.misses.Inc()
		}
		return nil, false
	}
	if s.hits != nil {
		s.hits.Inc()
	}
	return e.payload, true
}

// Put stores payload under key for ttl. Concurrent writers of the same key are
// idempotent in practice since they computed the same snapshot; the last write
// simply refreshes the expiry.
func (s *Store) Put(key string, payload []byte, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = entry{payload: payload, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

// Len reports the number of entries physically present, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartJanitor begins background purging of expired entries every interval.
// Purging is an optimization only; correctness comes from lazy expiry on read.
func (s *Store) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopJanitor:
				return
			case <-ticker.C:
				s.purgeExpired()
			}
		}
	}()
}

// Close stops the janitor if one is running.
func (s *Store) Close() {
	s.janitorOnce.Do(func() { close(s.stopJanitor) })
}

func (s *Store) purgeExpired() {
	now := s.now()
	s.mu.Lock()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()
}
