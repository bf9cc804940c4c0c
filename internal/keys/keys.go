// Package keys implements the rotating HMAC signing key store used to mint
// and verify player session tokens.
package keys

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/questgate/authbroker/internal/constants"
)

// UserClaim is the payload embedded in a verification token: which server a
// player is authorized to join and their player identifier. It carries no
// expiry claim — a token's effective lifetime is bounded by key rotation.
type UserClaim struct {
	ServerName string `json:"server_name"`
	UID        int64  `json:"uid"`
	jwt.RegisteredClaims
}

// Store holds two HMAC secrets, an active and an inactive one, and rotates
// them on a timer. Tokens are always signed with the active secret; they
// are verified against both, so a token minted just before a rotation still
// verifies for one more rotation interval.
type Store struct {
	mu         sync.RWMutex
	active     string
	inactive   string
	lastRotate time.Time
}

// NewStore returns a Store with two freshly generated, distinct secrets.
func NewStore() (*Store, error) {
	a, err := randomSecret(constants.DefaultKeyLength)
	if err != nil {
		return nil, fmt.Errorf("keys: generating active secret: %w", err)
	}
	b, err := randomSecret(constants.DefaultKeyLength)
	if err != nil {
		return nil, fmt.Errorf("keys: generating inactive secret: %w", err)
	}
	return &Store{active: a, inactive: b, lastRotate: time.Now()}, nil
}

// randomSecret draws n characters from constants.KeyAlphabet using a
// cryptographically secure source.
func randomSecret(n int) (string, error) {
	alphabet := constants.KeyAlphabet
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// ShouldRotate reports whether at least RotationInterval has elapsed since
// the last rotation.
func (s *Store) ShouldRotate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastRotate) >= constants.RotationInterval
}

// Rotate replaces the inactive secret with a fresh one and promotes it to
// active, demoting the current active secret to inactive. Any token signed
// under the secret that was active two rotations ago stops verifying.
func (s *Store) Rotate() error {
	fresh, err := randomSecret(constants.DefaultKeyLength)
	if err != nil {
		return fmt.Errorf("keys: rotating: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inactive = s.active
	s.active = fresh
	s.lastRotate = time.Now()
	return nil
}

// Encode signs claim with the active secret using HS512.
func (s *Store) Encode(claim UserClaim) (string, error) {
	s.mu.RLock()
	secret := s.active
	s.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claim)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("keys: signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies tokenString against the active secret, falling back to
// the inactive secret if the first attempt fails. This is what lets a
// token minted just before a rotation continue to verify afterward.
func (s *Store) Decode(tokenString string) (UserClaim, error) {
	s.mu.RLock()
	active, inactive := s.active, s.inactive
	s.mu.RUnlock()

	claim, err := decodeWith(tokenString, active)
	if err == nil {
		return claim, nil
	}
	claim, err2 := decodeWith(tokenString, inactive)
	if err2 == nil {
		return claim, nil
	}
	return UserClaim{}, fmt.Errorf("keys: token did not verify under either secret: %w", err)
}

func decodeWith(tokenString, secret string) (UserClaim, error) {
	var claim UserClaim
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("keys: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}
	_, err := jwt.ParseWithClaims(tokenString, &claim, keyFunc, jwt.WithValidMethods([]string{"HS512"}))
	if err != nil {
		return UserClaim{}, err
	}
	return claim, nil
}
