package authz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/FuhengZhao/foundationdb/keyset"
)

func emptySet(t *testing.T) *keyset.KeySet {
	t.Helper()
	ks, err := keyset.ParseKeySet([]byte(`{"keys":[]}`))
	if err != nil {
		t.Fatalf("parse empty JWKS: %v", err)
	}
	return ks
}

func TestTokenCacheReusesDecision(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ValidatorConfig{})
	c := NewTokenCache(TokenCacheConfig{})
	pair := rsaPair(t, "kid-1")
	token := signToken(t, pair, baseClaims("acme"))

	first := c.GetOrValidate(ctx, token, trustedSet(t, pair), v)
	if !first.Valid() {
		t.Fatalf("GetOrValidate: %v", first.Err)
	}

	// The signing key disappears from the trusted set; the cached decision
	// outlives the rotation until its TTL lapses.
	second := c.GetOrValidate(ctx, token, emptySet(t), v)
	if !second.Valid() {
		t.Fatalf("cached decision lost after key rotation: %v", second.Err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestTokenCacheDoesNotCacheDenials(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ValidatorConfig{})
	c := NewTokenCache(TokenCacheConfig{})
	pair := rsaPair(t, "kid-1")
	token := signToken(t, pair, baseClaims("acme"))

	denied := c.GetOrValidate(ctx, token, emptySet(t), v)
	if denied.Valid() {
		t.Fatal("token accepted against empty key set")
	}
	if !errors.Is(denied.Err, ErrUnknownSigningKey) {
		t.Fatalf("err = %v, want %v", denied.Err, ErrUnknownSigningKey)
	}
	if c.Len() != 0 {
		t.Fatalf("denial cached, Len() = %d", c.Len())
	}

	// Once the key is published the very next attempt succeeds.
	ok := c.GetOrValidate(ctx, token, trustedSet(t, pair), v)
	if !ok.Valid() {
		t.Fatalf("GetOrValidate after key publish: %v", ok.Err)
	}
}

func TestTokenCacheEntryExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ValidatorConfig{ClockSkew: time.Millisecond})
	c := NewTokenCache(TokenCacheConfig{TTL: 10 * time.Minute})
	pair := rsaPair(t, "kid-1")

	claims := baseClaims("acme")
	now := time.Now()
	claims["nbf"] = float64(now.Add(-time.Second).Unix())
	claims["exp"] = float64(now.UnixNano())/1e9 + 0.05
	token := signToken(t, pair, claims)

	first := c.GetOrValidate(ctx, token, trustedSet(t, pair), v)
	if !first.Valid() {
		t.Fatalf("GetOrValidate: %v", first.Err)
	}

	// The cached entry expires with the token itself, well before the
	// cache-wide TTL. Revalidation against a rotated set then denies.
	time.Sleep(150 * time.Millisecond)
	second := c.GetOrValidate(ctx, token, emptySet(t), v)
	if second.Valid() {
		t.Fatal("expired token still served from cache")
	}
}

func TestTokenCacheTTLBoundsReuse(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ValidatorConfig{})
	c := NewTokenCache(TokenCacheConfig{TTL: 40 * time.Millisecond})
	pair := rsaPair(t, "kid-1")
	token := signToken(t, pair, baseClaims("acme"))

	if res := c.GetOrValidate(ctx, token, trustedSet(t, pair), v); !res.Valid() {
		t.Fatalf("GetOrValidate: %v", res.Err)
	}

	time.Sleep(80 * time.Millisecond)
	res := c.GetOrValidate(ctx, token, emptySet(t), v)
	if res.Valid() {
		t.Fatal("decision served past the cache TTL")
	}
}

func TestTokenCacheConcurrentLookups(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ValidatorConfig{})
	c := NewTokenCache(TokenCacheConfig{})
	pair := rsaPair(t, "kid-1")
	ks := trustedSet(t, pair)
	token := signToken(t, pair, baseClaims("acme"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if res := c.GetOrValidate(ctx, token, ks, v); !res.Valid() {
					t.Errorf("GetOrValidate: %v", res.Err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestTokenCacheFlush(t *testing.T) {
	ctx := context.Background()
	v := NewValidator(ValidatorConfig{})
	c := NewTokenCache(TokenCacheConfig{})
	pair := rsaPair(t, "kid-1")

	c.GetOrValidate(ctx, signToken(t, pair, baseClaims("acme")), trustedSet(t, pair), v)
	if c.Len() == 0 {
		t.Fatal("valid decision not cached")
	}
	c.Flush()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after Flush", c.Len())
	}
}
