package access

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

const (
	// KeySetTTL is how long a cached key set is trusted before it is
	// refetched.
	KeySetTTL = 10 * time.Minute

	// StoreTTL is the expiry handed to the backing store. It must outlive
	// KeySetTTL so that entries are refreshed before the store drops them.
	StoreTTL = 15 * time.Minute

	cacheKeyPrefix = "jwks:"
)

// Store is a key-value backend with per-key expiry. Get reports a missing
// key as found == false with a nil error. Implementations live in pkg/kv.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KeySetCache holds the latest key set per issuer.
//
// Get returns a set only when it is present, decodable, and fresh; every
// other outcome is a plain miss. Put records keys with the current time as
// FetchedAt and fails only when the write fails.
type KeySetCache interface {
	Get(ctx context.Context, issuer string) (*KeySet, bool)
	Put(ctx context.Context, issuer string, keys []SigningKey) error
}

// CacheKey returns the store key for an issuer's key set.
func CacheKey(issuer string) string {
	return cacheKeyPrefix + issuer
}

// StoreCache is a KeySetCache over a Store. It is safe for concurrent use
// when the Store is.
type StoreCache struct {
	store    Store
	ttl      time.Duration
	storeTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

var _ KeySetCache = (*StoreCache)(nil)

// CacheOption configures a StoreCache.
type CacheOption func(*StoreCache)

// WithTTLs overrides KeySetTTL and StoreTTL. storeTTL must be strictly
// greater than ttl.
func WithTTLs(ttl, storeTTL time.Duration) CacheOption {
	return func(c *StoreCache) {
		c.ttl = ttl
		c.storeTTL = storeTTL
	}
}

// WithCacheClock sets the time source used for freshness checks and
// FetchedAt stamps.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *StoreCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the logger for dropped entries.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *StoreCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewStoreCache returns a StoreCache over store.
func NewStoreCache(store Store, opts ...CacheOption) (*StoreCache, error) {
	if store == nil {
		return nil, agerr.New(agerr.CodeValidation, "access: cache store must not be nil")
	}
	c := &StoreCache{
		store:    store,
		ttl:      KeySetTTL,
		storeTTL: StoreTTL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl <= 0 {
		return nil, agerr.New(agerr.CodeValidation, "access: key set TTL must be positive")
	}
	if c.storeTTL <= c.ttl {
		return nil, agerr.Newf(agerr.CodeValidation,
			"access: store TTL %s must exceed key set TTL %s", c.storeTTL, c.ttl)
	}
	return c, nil
}

// Get returns the fresh key set cached for issuer.
func (c *StoreCache) Get(ctx context.Context, issuer string) (*KeySet, bool) {
	data, found, err := c.store.Get(ctx, CacheKey(issuer))
	if err != nil {
		c.logger.WarnContext(ctx, "access: key set cache read failed",
			"issuer", issuer,
			"error", err,
		)
		cacheLookups.WithLabelValues(lookupError).Inc()
		return nil, false
	}
	if !found {
		cacheLookups.WithLabelValues(lookupMiss).Inc()
		return nil, false
	}

	var set KeySet
	if err := json.Unmarshal(data, &set); err != nil {
		c.logger.WarnContext(ctx, "access: discarding undecodable key set",
			"issuer", issuer,
			"error", err,
		)
		cacheLookups.WithLabelValues(lookupInvalid).Inc()
		return nil, false
	}
	if set.IsStale(c.now(), c.ttl) {
		cacheLookups.WithLabelValues(lookupStale).Inc()
		return nil, false
	}

	cacheLookups.WithLabelValues(lookupHit).Inc()
	return &set, true
}

// Put stores keys for issuer, stamped with the current time.
func (c *StoreCache) Put(ctx context.Context, issuer string, keys []SigningKey) error {
	data, err := json.Marshal(KeySet{Keys: keys, FetchedAt: c.now()})
	if err != nil {
		return agerr.Wrap(err, agerr.CodeCacheWrite, "access: failed to encode key set")
	}
	if err := c.store.Set(ctx, CacheKey(issuer), data, c.storeTTL); err != nil {
		return agerr.Wrap(err, agerr.CodeCacheWrite, "access: failed to store key set")
	}
	return nil
}
