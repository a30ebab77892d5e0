package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FuhengZhao/foundationdb/keyset"
	"github.com/FuhengZhao/foundationdb/observe"
)

// DefaultClockSkew is the symmetric tolerance applied to the claim validity
// window when none is configured.
const DefaultClockSkew = 30 * time.Second

// signingMethods lists the accepted JWS algorithms. "none" and HMAC families
// are excluded: only asymmetric signatures are trusted.
var signingMethods = []string{
	"RS256", "RS384", "RS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// Result is the outcome of validating one token: either a Claim with its
// expiry, or a denial reason.
type Result struct {
	Claim     *Claim
	ExpiresAt time.Time
	Err       error
}

// Valid reports whether validation succeeded.
func (r Result) Valid() bool {
	return r.Err == nil
}

// ValidatorConfig configures the claim validator.
type ValidatorConfig struct {
	// ClockSkew is the symmetric tolerance on nbf/exp checks.
	// Default: DefaultClockSkew.
	ClockSkew time.Duration

	// Logger receives per-denial diagnostics. Optional.
	Logger observe.Logger
}

// Validator verifies token signatures against a KeySet snapshot and checks
// the decoded claims. Validating the same token twice against an unchanged
// KeySet yields the same result.
type Validator struct {
	skew time.Duration
	log  observe.Logger
	now  func() time.Time
}

// NewValidator creates a claim validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &Validator{
		skew: cfg.ClockSkew,
		log:  cfg.Logger.WithComponent("validator"),
		now:  time.Now,
	}
}

// Validate checks token against the given KeySet snapshot. Every failure is a
// denial: the returned Result carries the internal reason, which callers must
// not leak past the gate boundary.
func (v *Validator) Validate(ctx context.Context, token []byte, ks *keyset.KeySet) Result {
	claim, err := v.verify(token, ks)
	if err != nil {
		v.log.Debug(ctx, "token denied",
			observe.Field{Key: "reason", Value: err.Error()},
		)
		return Result{Err: err}
	}
	return Result{Claim: claim, ExpiresAt: claim.ExpiresAt}
}

func (v *Validator) verify(token []byte, ks *keyset.KeySet) (*Claim, error) {
	if len(token) == 0 {
		return nil, ErrTokenMalformed
	}

	keyfunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: no kid in header", ErrUnknownSigningKey)
		}
		key, ok := ks.Lookup(kid)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSigningKey, kid)
		}
		// The declared algorithm must be the one the key was published
		// for; a token must not pick a weaker algorithm for a stronger
		// key.
		if t.Method.Alg() != key.Alg {
			return nil, fmt.Errorf("%w: algorithm %q does not match key %q",
				ErrBadSignature, t.Method.Alg(), kid)
		}
		return key.Key, nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(signingMethods),
		// Temporal checks run below with the configured skew; required
		// field presence matters, which the library does not enforce.
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.Parse(string(token), keyfunc)
	if err != nil {
		return nil, mapParseError(err)
	}
	if !parsed.Valid {
		return nil, ErrBadSignature
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}

	claim, err := claimFromMap(mc)
	if err != nil {
		return nil, err
	}

	now := v.now()
	if now.Add(v.skew).Before(claim.NotBefore) {
		return nil, fmt.Errorf("%w: not yet valid", ErrClaimOutOfTimeWindow)
	}
	if now.Add(-v.skew).After(claim.ExpiresAt) {
		return nil, fmt.Errorf("%w: expired", ErrClaimOutOfTimeWindow)
	}

	if len(claim.Tenants) == 0 {
		return nil, ErrEmptyTenantClaim
	}

	return claim, nil
}

// mapParseError collapses library errors onto the internal denial taxonomy.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownSigningKey):
		return err
	case errors.Is(err, ErrBadSignature):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
