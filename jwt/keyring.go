package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm shared by every key in a [KeyRing].
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key; verification derives the public half.
	MethodEd25519 SigningMethod = "ed25519"
)

// SigningKey is one entry of the key ring.
//
// A key may sign only while it is the ring's current key. It may verify from
// ActivatedAt until ExpiresAt (or forever when ExpiresAt is nil).
type SigningKey struct {
	ID          string
	Secret      []byte
	ActivatedAt time.Time
	ExpiresAt   *time.Time
}

// IsExpired reports whether now is at or past ExpiresAt.
func (k SigningKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// IsActive reports whether ActivatedAt <= now < ExpiresAt.
func (k SigningKey) IsActive(now time.Time) bool {
	return !now.Before(k.ActivatedAt) && !k.IsExpired(now)
}

// KeyRing is an immutable set of signing keys with exactly one current key.
//
// A new ring is built for every rotation; callers never mutate a ring in place.
type KeyRing struct {
	method    SigningMethod
	currentID string
	keys      map[string]SigningKey
}

// NewKeyRing validates the key set and returns a ring whose current issuing key is currentID.
func NewKeyRing(method SigningMethod, currentID string, keys ...SigningKey) (*KeyRing, error) {
	switch method {
	case MethodHS256, MethodEd25519:
	case "":
		method = MethodHS256
	default:
		return nil, errors.New("unsupported signing method")
	}

	currentID = strings.TrimSpace(currentID)
	if currentID == "" {
		return nil, errors.New("current key id is required")
	}
	if len(keys) == 0 {
		return nil, errors.New("key ring requires at least one key")
	}

	ring := &KeyRing{
		method:    method,
		currentID: currentID,
		keys:      make(map[string]SigningKey, len(keys)),
	}
	for _, k := range keys {
		id := strings.TrimSpace(k.ID)
		if id == "" {
			return nil, errors.New("key ring contains empty key id")
		}
		if _, dup := ring.keys[id]; dup {
			return nil, fmt.Errorf("duplicate key id %q", id)
		}
		if len(k.Secret) == 0 {
			return nil, fmt.Errorf("key %q has no secret material", id)
		}
		if k.ExpiresAt != nil && !k.ExpiresAt.After(k.ActivatedAt) {
			return nil, fmt.Errorf("key %q expires before it activates", id)
		}
		if method == MethodEd25519 {
			if _, err := parseEdPrivateKey(k.Secret); err != nil {
				return nil, fmt.Errorf("key %q: %w", id, err)
			}
		}
		k.ID = id
		k.Secret = append([]byte(nil), k.Secret...)
		if k.ExpiresAt != nil {
			exp := *k.ExpiresAt
			k.ExpiresAt = &exp
		}
		ring.keys[id] = k
	}

	if _, ok := ring.keys[currentID]; !ok {
		return nil, fmt.Errorf("current key %q is not in the key ring", currentID)
	}

	return ring, nil
}

// Method returns the ring's signing method.
func (r *KeyRing) Method() SigningMethod {
	return r.method
}

// CurrentID returns the id of the key used for new issuance.
func (r *KeyRing) CurrentID() string {
	return r.currentID
}

// Current returns the key used for new issuance.
func (r *KeyRing) Current() SigningKey {
	return r.keys[r.currentID]
}

// Lookup returns the key with the given id.
func (r *KeyRing) Lookup(id string) (SigningKey, bool) {
	k, ok := r.keys[id]
	return k, ok
}

// IDs returns all key ids in sorted order.
func (r *KeyRing) IDs() []string {
	out := make([]string, 0, len(r.keys))
	for id := range r.keys {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *KeyRing) jwtMethod() jwt.SigningMethod {
	if r.method == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (r *KeyRing) signKey(k SigningKey) (interface{}, error) {
	if r.method == MethodEd25519 {
		return parseEdPrivateKey(k.Secret)
	}
	return k.Secret, nil
}

func (r *KeyRing) verifyKey(k SigningKey) (interface{}, error) {
	if r.method == MethodEd25519 {
		priv, err := parseEdPrivateKey(k.Secret)
		if err != nil {
			return nil, err
		}
		return priv.Public(), nil
	}
	return k.Secret, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	if len(key) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

// KeySource hands out the ring that is live right now.
type KeySource interface {
	KeyRing() *KeyRing
}

// StaticKeySource serves one ring for the life of the process.
type StaticKeySource struct {
	ring *KeyRing
}

// NewStaticKeySource wraps ring.
func NewStaticKeySource(ring *KeyRing) *StaticKeySource {
	return &StaticKeySource{ring: ring}
}

// KeyRing returns the wrapped ring.
func (s *StaticKeySource) KeyRing() *KeyRing {
	if s == nil {
		return nil
	}
	return s.ring
}
