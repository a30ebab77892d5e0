package authz

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FuhengZhao/foundationdb/keyset"
)

// keypair bundles a private key with its published JWK entry so tests can
// both sign tokens and build the trusted key set.
type keypair struct {
	kid    string
	method jwt.SigningMethod
	priv   any
	jwk    map[string]any
}

func rsaPair(t testing.TB, kid string) keypair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	pub := &priv.PublicKey
	return keypair{
		kid:    kid,
		method: jwt.SigningMethodRS256,
		priv:   priv,
		jwk: map[string]any{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		},
	}
}

func ecPair(t testing.TB, kid string) keypair {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate EC key: %v", err)
	}
	byteLen := (priv.Curve.Params().BitSize + 7) / 8
	return keypair{
		kid:    kid,
		method: jwt.SigningMethodES256,
		priv:   priv,
		jwk: map[string]any{
			"kty": "EC",
			"kid": kid,
			"use": "sig",
			"crv": "P-256",
			"x":   base64.RawURLEncoding.EncodeToString(priv.X.FillBytes(make([]byte, byteLen))),
			"y":   base64.RawURLEncoding.EncodeToString(priv.Y.FillBytes(make([]byte, byteLen))),
		},
	}
}

func okpPair(t testing.TB, kid string) keypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate Ed25519 key: %v", err)
	}
	return keypair{
		kid:    kid,
		method: jwt.SigningMethodEdDSA,
		priv:   priv,
		jwk: map[string]any{
			"kty": "OKP",
			"kid": kid,
			"use": "sig",
			"crv": "Ed25519",
			"x":   base64.RawURLEncoding.EncodeToString(pub),
		},
	}
}

// trustedSet builds a KeySet from the given pairs' public halves.
func trustedSet(t testing.TB, pairs ...keypair) *keyset.KeySet {
	t.Helper()
	keys := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, p.jwk)
	}
	raw, err := json.Marshal(map[string]any{"keys": keys})
	if err != nil {
		t.Fatalf("marshal JWKS: %v", err)
	}
	ks, err := keyset.ParseKeySet(raw)
	if err != nil {
		t.Fatalf("parse JWKS: %v", err)
	}
	return ks
}

// baseClaims returns a claim set valid for the next hour.
func baseClaims(tenants ...string) jwt.MapClaims {
	now := time.Now()
	list := make([]any, 0, len(tenants))
	for _, tn := range tenants {
		list = append(list, tn)
	}
	return jwt.MapClaims{
		"iss":     "test-issuer",
		"sub":     "test-subject",
		"jti":     uuid.NewString(),
		"iat":     float64(now.Unix()),
		"nbf":     float64(now.Add(-time.Minute).Unix()),
		"exp":     float64(now.Add(time.Hour).Unix()),
		"tenants": list,
	}
}

// signToken mints a token with the pair's key and kid header.
func signToken(t testing.TB, p keypair, claims jwt.MapClaims) []byte {
	t.Helper()
	tok := jwt.NewWithClaims(p.method, claims)
	tok.Header["kid"] = p.kid
	signed, err := tok.SignedString(p.priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return []byte(signed)
}
