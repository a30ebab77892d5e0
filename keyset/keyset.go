package keyset

import (
	"crypto"
	"sort"
)

// SigningKey is a single trusted public key. Immutable once constructed.
type SigningKey struct {
	// KID is the opaque key identifier ("kid") unique within a KeySet.
	KID string

	// Alg is the JWS signing algorithm verified with this key
	// (RS256, ES256, EdDSA, ...).
	Alg string

	// Key is the public key material: *rsa.PublicKey, *ecdsa.PublicKey,
	// or ed25519.PublicKey.
	Key crypto.PublicKey
}

// KeySet is an immutable mapping from key ID to SigningKey. It is built as a
// unit by ParseKeySet and replaced wholesale on refresh; keys of different
// algorithm families may coexist to support staged rollovers.
type KeySet struct {
	keys map[string]SigningKey
}

// Lookup returns the key with the given ID.
func (s *KeySet) Lookup(kid string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	k, ok := s.keys[kid]
	return k, ok
}

// Len returns the number of keys in the set.
func (s *KeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// KIDs returns the sorted key IDs in the set.
func (s *KeySet) KIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		ids = append(ids, kid)
	}
	sort.Strings(ids)
	return ids
}

// newKeySet builds a set from parsed keys. Callers guarantee kid uniqueness.
func newKeySet(keys []SigningKey) *KeySet {
	m := make(map[string]SigningKey, len(keys))
	for _, k := range keys {
		m[k.KID] = k
	}
	return &KeySet{keys: m}
}
