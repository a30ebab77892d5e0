package authz

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim is the decoded body of a token. Immutable once parsed.
type Claim struct {
	Issuer    string
	Subject   string
	Audience  []string
	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time

	// TokenID is the jti claim, used for diagnostics.
	TokenID string

	// Tenants is the ordered set of tenant names the token authorizes.
	// Never empty for a valid claim.
	Tenants []string
}

// HasTenant reports exact-match membership of name in the tenant list.
// No wildcard or prefix matching.
func (c *Claim) HasTenant(name string) bool {
	for _, t := range c.Tenants {
		if t == name {
			return true
		}
	}
	return false
}

// claimFromMap decodes raw JWT claims into a Claim. The fields nbf, exp, iat,
// and tenants are required; absence of any is a denial.
func claimFromMap(mc jwt.MapClaims) (*Claim, error) {
	c := &Claim{}

	var err error
	if c.NotBefore, err = requiredTime(mc, "nbf"); err != nil {
		return nil, err
	}
	if c.ExpiresAt, err = requiredTime(mc, "exp"); err != nil {
		return nil, err
	}
	if c.IssuedAt, err = requiredTime(mc, "iat"); err != nil {
		return nil, err
	}

	raw, ok := mc["tenants"]
	if !ok {
		return nil, fmt.Errorf("%w: tenants", ErrClaimMissingField)
	}
	tenants, err := stringList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: tenants", ErrTokenMalformed)
	}
	c.Tenants = tenants

	// Optional fields.
	if iss, ok := mc["iss"].(string); ok {
		c.Issuer = iss
	}
	if sub, ok := mc["sub"].(string); ok {
		c.Subject = sub
	}
	if jti, ok := mc["jti"].(string); ok {
		c.TokenID = jti
	}
	if aud, ok := mc["aud"]; ok {
		if list, err := stringList(aud); err == nil {
			c.Audience = list
		} else if s, ok := aud.(string); ok {
			c.Audience = []string{s}
		}
	}

	return c, nil
}

// requiredTime extracts a numeric-date claim, denying when absent.
func requiredTime(mc jwt.MapClaims, name string) (time.Time, error) {
	raw, ok := mc[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrClaimMissingField, name)
	}
	switch v := raw.(type) {
	case float64:
		return unixFloat(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s", ErrTokenMalformed, name)
		}
		return unixFloat(f), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %s", ErrTokenMalformed, name)
	}
}

func unixFloat(v float64) time.Time {
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func stringList(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("non-string element")
		}
		out = append(out, s)
	}
	return out, nil
}
