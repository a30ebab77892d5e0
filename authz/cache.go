package authz

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/FuhengZhao/foundationdb/keyset"
	"github.com/FuhengZhao/foundationdb/observe"
)

// DefaultCacheTTL bounds how long a validation result may be reused without
// re-running signature and claim checks.
const DefaultCacheTTL = 2 * time.Minute

// TokenCache memoizes validation results keyed by raw token bytes.
//
// A cached result is served without consulting the validator or the current
// KeySet: a token validated while its signing key was active stays usable for
// the TTL window even after that key rotates out. Rotation only affects new
// validations. An entry is never served past its claim's own expiry; the
// effective lifetime is min(cache TTL, time to claim expiry).
//
// Safe for concurrent use. Under contention the same token may be validated
// more than once; that is wasted work, not an incorrectness.
type TokenCache struct {
	ttl     time.Duration
	entries *gocache.Cache
	metrics observe.Metrics
	now     func() time.Time
}

// TokenCacheConfig configures the token cache.
type TokenCacheConfig struct {
	// TTL is the maximum reuse window. Default: DefaultCacheTTL.
	TTL time.Duration

	// Metrics records hit/miss counts. Optional.
	Metrics observe.Metrics
}

// NewTokenCache creates a token cache.
func NewTokenCache(cfg TokenCacheConfig) *TokenCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	return &TokenCache{
		ttl: cfg.TTL,
		// Expired entries are dropped lazily on access; the janitor
		// bounds memory for tokens never seen again.
		entries: gocache.New(cfg.TTL, 2*cfg.TTL),
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// GetOrValidate returns the cached result for token, or runs the validator
// against the given KeySet snapshot and caches the outcome. Denials are not
// retained: their expiry would be "now" by the dual-expiry rule.
func (c *TokenCache) GetOrValidate(ctx context.Context, token []byte, ks *keyset.KeySet, v *Validator) Result {
	key := string(token)

	if cached, ok := c.entries.Get(key); ok {
		c.metrics.RecordCacheLookup(ctx, true)
		return cached.(Result)
	}
	c.metrics.RecordCacheLookup(ctx, false)

	res := v.Validate(ctx, token, ks)
	if res.Valid() {
		ttl := c.ttl
		if remaining := res.ExpiresAt.Sub(c.now()); remaining < ttl {
			ttl = remaining
		}
		if ttl > 0 {
			c.entries.Set(key, res, ttl)
		}
	}
	return res
}

// Len returns the number of live cache entries.
func (c *TokenCache) Len() int {
	return c.entries.ItemCount()
}

// Flush drops all cached results.
func (c *TokenCache) Flush() {
	c.entries.Flush()
}
