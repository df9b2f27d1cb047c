package access

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// SigningKey is one RSA public key from an issuer's key set, in JWK form.
type SigningKey struct {
	KeyType  string `json:"kty"`
	KeyID    string `json:"kid"`
	Modulus  string `json:"n"`
	Exponent string `json:"e"`
}

// PublicKey decodes the base64url modulus and exponent into an RSA key.
func (k SigningKey) PublicKey() (*rsa.PublicKey, error) {
	if k.KeyType != "RSA" {
		return nil, fmt.Errorf("access: key %q has type %q, want RSA", k.KeyID, k.KeyType)
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("access: failed to decode modulus of key %q: %w", k.KeyID, err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.Exponent)
	if err != nil {
		return nil, fmt.Errorf("access: failed to decode exponent of key %q: %w", k.KeyID, err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	if n.Sign() == 0 || !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("access: key %q has invalid RSA parameters", k.KeyID)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// KeySet is a snapshot of an issuer's signing keys. It is treated as a
// value: a refresh produces a new KeySet rather than editing one.
type KeySet struct {
	Keys      []SigningKey
	FetchedAt time.Time
}

// keySetJSON is the stored form. fetched_at_ms is Unix milliseconds.
type keySetJSON struct {
	Keys        []SigningKey `json:"keys"`
	FetchedAtMs int64        `json:"fetched_at_ms"`
}

// MarshalJSON encodes the set with FetchedAt in Unix milliseconds.
func (s KeySet) MarshalJSON() ([]byte, error) {
	keys := s.Keys
	if keys == nil {
		keys = []SigningKey{}
	}
	return json.Marshal(keySetJSON{Keys: keys, FetchedAtMs: s.FetchedAt.UnixMilli()})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (s *KeySet) UnmarshalJSON(data []byte) error {
	var raw keySetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Keys = raw.Keys
	s.FetchedAt = time.UnixMilli(raw.FetchedAtMs)
	return nil
}

// IsStale reports whether more than ttl has passed between FetchedAt and
// now. A set exactly ttl old is still fresh.
func (s *KeySet) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.FetchedAt) > ttl
}

// Key returns the key whose kid equals kid.
func (s *KeySet) Key(kid string) (SigningKey, bool) {
	if s == nil {
		return SigningKey{}, false
	}
	for _, k := range s.Keys {
		if k.KeyID == kid {
			return k, true
		}
	}
	return SigningKey{}, false
}

// KeyIDs lists the kids in the set, in order.
func (s *KeySet) KeyIDs() []string {
	ids := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		ids[i] = k.KeyID
	}
	return ids
}
