package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/staffhub/staffhub/shared/domain"
	"golang.org/x/crypto/blake2b"
)

var ErrInvalidPepper = errors.New("identity pepper must be at most 64 bytes")

// IdentityHasher derives record keys from email addresses
type IdentityHasher struct {
	pepper []byte
}

// NewIdentityHasher creates a hasher keyed with pepperBase64.
// An empty pepper gives plain BLAKE2b-256. The pepper must never change once
// records have been written, otherwise existing keys stop resolving.
func NewIdentityHasher(pepperBase64 string) (*IdentityHasher, error) {
	if pepperBase64 == "" {
		return &IdentityHasher{}, nil
	}
	pepper, err := base64.StdEncoding.DecodeString(pepperBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identity pepper: %w", err)
	}
	if len(pepper) > blake2b.Size {
		return nil, ErrInvalidPepper
	}
	return &IdentityHasher{pepper: pepper}, nil
}

// HashedEmail creates a deterministic one-way identity for an email.
// Always normalizes email to lowercase before hashing
func (h *IdentityHasher) HashedEmail(email string) domain.HashedEmail {
	email = strings.ToLower(strings.TrimSpace(email))

	// New256 only fails on an oversized key, which the constructor rejects
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	mac.Write([]byte(email))
	return domain.HashedEmail(hex.EncodeToString(mac.Sum(nil)))
}

// GeneratePepper generates a random 32-byte pepper and returns it as base64
func GeneratePepper() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate pepper: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
