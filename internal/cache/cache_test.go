package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Fingerprint Tests --

func TestFingerprintDeterminism(t *testing.T) {
	a := Fingerprint("https://example.com", "GET", "", "chromium")
	b := Fingerprint("https://example.com", "GET", "", "chromium")
	assert.Equal(t, a, b, "identical inputs must produce identical fingerprints")
	assert.Len(t, a, 64)
}

func TestFingerprintFieldSensitivity(t *testing.T) {
	base := Fingerprint("https://example.com", "GET", "", "chromium")

	assert.NotEqual(t, base, Fingerprint("https://example.org", "GET", "", "chromium"))
	assert.NotEqual(t, base, Fingerprint("https://example.com", "POST", "", "chromium"))
	assert.NotEqual(t, base, Fingerprint("https://example.com", "GET", "a=1", "chromium"))
	assert.NotEqual(t, base, Fingerprint("https://example.com", "GET", "", "firefox"))
}

func TestFingerprintFraming(t *testing.T) {
	// Without length framing these two tuples would concatenate identically.
	a := Fingerprint("ab", "c", "", "x")
	b := Fingerprint("a", "bc", "", "x")
	assert.NotEqual(t, a, b)
}

func TestContentFingerprint(t *testing.T) {
	assert.Equal(t, ContentFingerprint("<p>hi</p>"), ContentFingerprint("<p>hi</p>"))
	assert.NotEqual(t, ContentFingerprint("<p>hi</p>"), ContentFingerprint("<p>ho</p>"))
}

// -- Store Tests --

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore()
	defer s.Close()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Put("k", []byte("payload"), time.Minute)
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestStoreExpiry(t *testing.T) {
	now := time.Now()
	clock := &now
	s := NewStore(WithClock(func() time.Time { return *clock }))
	defer s.Close()

	s.Put("k", []byte("payload"), time.Minute)

	_, ok := s.Get("k")
	assert.True(t, ok, "entry should be live before its ttl elapses")

	// Advance past the ttl; the entry must behave as absent and be dropped.
	later := now.Add(2 * time.Minute)
	clock = &later
	_, ok = s.Get("k")
	assert.False(t, ok, "expired entry must be treated as a miss")
	assert.Equal(t, 0, s.Len(), "expired entry should be lazily removed on read")
}

func TestStorePutRefreshesExpiry(t *testing.T) {
	now := time.Now()
	clock := &now
	s := NewStore(WithClock(func() time.Time { return *clock }))
	defer s.Close()

	s.Put("k", []byte("old"), time.Minute)
	later := now.Add(50 * time.Second)
	clock = &later
	s.Put("k", []byte("new"), time.Minute)

	evenLater := now.Add(100 * time.Second)
	clock = &evenLater
	got, ok := s.Get("k")
	require.True(t, ok, "rewrite should have refreshed the expiry")
	assert.Equal(t, []byte("new"), got)
}

func TestStorePurgeExpired(t *testing.T) {
	now := time.Now()
	clock := &now
	s := NewStore(WithClock(func() time.Time { return *clock }))
	defer s.Close()

	s.Put("live", []byte("a"), time.Hour)
	s.Put("dead", []byte("b"), time.Second)
	require.Equal(t, 2, s.Len())

	later := now.Add(time.Minute)
	clock = &later
	s.purgeExpired()

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("live")
	assert.True(t, ok)
}

func TestStoreCounters(t *testing.T) {
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_hits"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_misses"})
	s := NewStore(WithCounters(hits, misses))
	defer s.Close()

	s.Get("absent")
	s.Put("k", []byte("v"), time.Minute)
	s.Get("k")
	s.Get("k")

	assert.Equal(t, float64(2), testutil.ToFloat64(hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(misses))
}

func TestStoreJanitorStops(t *testing.T) {
	s := NewStore()
	s.StartJanitor(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	s.Close()
	// goleak in TestMain verifies the janitor goroutine exits.
}
