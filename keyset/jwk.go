package keyset

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

// Parse errors. A document that fails to parse in full is rejected as a unit;
// the previously active KeySet stays in effect.
var (
	ErrDuplicateKID = errors.New("keyset: duplicate kid in document")
	ErrMissingKID   = errors.New("keyset: key without kid")
)

// jwksDocument is the external JSON key source format.
type jwksDocument struct {
	Keys []jwkEntry `json:"keys"`
}

// jwkEntry is a single JWK. Only the fields needed for the supported key
// families are decoded.
type jwkEntry struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Crv string `json:"crv"`
	N   string `json:"n"`
	E   string `json:"e"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// ParseKeySet decodes a JWKS document into a KeySet. Any invalid entry fails
// the whole document: the set is loaded atomically or not at all.
func ParseKeySet(data []byte) (*KeySet, error) {
	var doc jwksDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("keyset: decode document: %w", err)
	}

	keys := make([]SigningKey, 0, len(doc.Keys))
	seen := make(map[string]bool, len(doc.Keys))
	for i, entry := range doc.Keys {
		if entry.Kid == "" {
			return nil, fmt.Errorf("%w (entry %d)", ErrMissingKID, i)
		}
		if seen[entry.Kid] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKID, entry.Kid)
		}
		seen[entry.Kid] = true

		key, err := parseJWK(entry)
		if err != nil {
			return nil, fmt.Errorf("keyset: key %q: %w", entry.Kid, err)
		}
		keys = append(keys, key)
	}

	return newKeySet(keys), nil
}

func parseJWK(entry jwkEntry) (SigningKey, error) {
	switch entry.Kty {
	case "RSA":
		return parseRSAKey(entry)
	case "EC":
		return parseECKey(entry)
	case "OKP":
		return parseOKPKey(entry)
	default:
		return SigningKey{}, fmt.Errorf("unsupported kty %q", entry.Kty)
	}
}

func parseRSAKey(entry jwkEntry) (SigningKey, error) {
	if entry.N == "" {
		return SigningKey{}, errors.New("missing n parameter")
	}
	if entry.E == "" {
		return SigningKey{}, errors.New("missing e parameter")
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(entry.N)
	if err != nil {
		return SigningKey{}, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(entry.E)
	if err != nil {
		return SigningKey{}, fmt.Errorf("decode e: %w", err)
	}

	pub := &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}

	alg := entry.Alg
	if alg == "" {
		alg = "RS256"
	}
	return SigningKey{KID: entry.Kid, Alg: alg, Key: pub}, nil
}

func parseECKey(entry jwkEntry) (SigningKey, error) {
	var curve elliptic.Curve
	var defaultAlg string
	switch entry.Crv {
	case "P-256":
		curve, defaultAlg = elliptic.P256(), "ES256"
	case "P-384":
		curve, defaultAlg = elliptic.P384(), "ES384"
	case "P-521":
		curve, defaultAlg = elliptic.P521(), "ES512"
	default:
		return SigningKey{}, fmt.Errorf("unsupported crv %q", entry.Crv)
	}

	if entry.X == "" || entry.Y == "" {
		return SigningKey{}, errors.New("missing x/y parameters")
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(entry.X)
	if err != nil {
		return SigningKey{}, fmt.Errorf("decode x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(entry.Y)
	if err != nil {
		return SigningKey{}, fmt.Errorf("decode y: %w", err)
	}

	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if !curve.IsOnCurve(pub.X, pub.Y) {
		return SigningKey{}, errors.New("point not on curve")
	}

	alg := entry.Alg
	if alg == "" {
		alg = defaultAlg
	}
	return SigningKey{KID: entry.Kid, Alg: alg, Key: pub}, nil
}

func parseOKPKey(entry jwkEntry) (SigningKey, error) {
	if entry.Crv != "Ed25519" {
		return SigningKey{}, fmt.Errorf("unsupported crv %q", entry.Crv)
	}
	if entry.X == "" {
		return SigningKey{}, errors.New("missing x parameter")
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(entry.X)
	if err != nil {
		return SigningKey{}, fmt.Errorf("decode x: %w", err)
	}
	if len(xBytes) != ed25519.PublicKeySize {
		return SigningKey{}, fmt.Errorf("bad key length %d", len(xBytes))
	}

	alg := entry.Alg
	if alg == "" {
		alg = "EdDSA"
	}
	return SigningKey{KID: entry.Kid, Alg: alg, Key: ed25519.PublicKey(xBytes)}, nil
}
