package access

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/StricklySoft/accessguard/internal/testutil/edgetest"
)

const testAudience = "aud-123"

// t0 is a whole second so NumericDate comparisons are exact.
var t0 = time.Unix(1_750_000_000, 0)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is a Store that records writes and can be made to fail.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	sets   int
	getErr error
	setErr error
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.sets++
	s.data[key] = append([]byte(nil), value...)
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) raw(key string) ([]byte, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, s.ttls[key], ok
}

func (s *memStore) put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *memStore) failSets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

// countingFetcher counts calls to the wrapped Fetcher.
type countingFetcher struct {
	inner Fetcher
	calls atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, cfg *Config) (*KeySet, error) {
	f.calls.Add(1)
	return f.inner.Fetch(ctx, cfg)
}

// claimsAt returns valid claims for the edge as of now, expiring in an
// hour.
func claimsAt(edge *edgetest.Edge, now time.Time) jwt.MapClaims {
	c := edge.Claims(testAudience, "user-1")
	c["iat"] = now.Unix()
	c["nbf"] = now.Unix()
	c["exp"] = now.Add(time.Hour).Unix()
	return c
}

// signingKeyOf converts the edge's published form of kid.
func signingKeyOf(edge *edgetest.Edge, kid string) SigningKey {
	j := edge.PublicJWK(kid)
	return SigningKey{KeyType: j.Kty, KeyID: j.Kid, Modulus: j.N, Exponent: j.E}
}

// spliceSignature returns a's header and payload with b's signature.
func spliceSignature(a, b string) string {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	return pa[0] + "." + pa[1] + "." + pb[2]
}
