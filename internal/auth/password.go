package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is used when no bcrypt cost is configured.
const DefaultCost = 10

// ErrCredential wraps failures of the hashing primitive itself.
var ErrCredential = errors.New("credential error")

// CredentialStore hashes and verifies account secrets.
type CredentialStore struct {
	cost int
}

// NewCredentialStore returns a bcrypt-backed store with the given cost.
func NewCredentialStore(cost int) *CredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &CredentialStore{cost: cost}
}

// Hash returns a salted bcrypt digest of secret.
func (s *CredentialStore) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredential, err)
	}
	return string(hashed), nil
}

// Verify reports whether secret matches digest. A malformed digest is a
// CredentialError, not a mismatch.
func (s *CredentialStore) Verify(secret, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCredential, err)
	}
}

// RandomSecret returns a high-entropy secret nobody knows, for accounts that
// exist only to own anonymous reports.
func RandomSecret() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredential, err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
