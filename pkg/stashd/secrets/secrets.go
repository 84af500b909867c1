package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// SecretLength is the length of the generated secret in bytes (32 bytes = 64 hex chars)
	SecretLength = 32
	// KeyPrefixLength is the number of characters to store as prefix for identification
	KeyPrefixLength = 8
)

// ErrEntropyUnavailable is returned when the secure random source cannot be read.
var ErrEntropyUnavailable = errors.New("secure random source unavailable")

// Secret is a freshly generated credential value together with its
// storable derivations. Plaintext is returned to the caller exactly once
// and must not be persisted anywhere.
type Secret struct {
	Plaintext   string
	Fingerprint string // SHA-256, deterministic, used for lookups
	Hash        []byte // bcrypt, used to verify possession
	KeyPrefix   string
}

// Generate produces a new random secret and its derivations.
func Generate() (Secret, error) {
	buf := make([]byte, SecretLength)
	if _, err := rand.Read(buf); err != nil {
		return Secret{}, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}

	plaintext := hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return Secret{}, err
	}

	return Secret{
		Plaintext:   plaintext,
		Fingerprint: Fingerprint(plaintext),
		Hash:        hash,
		KeyPrefix:   plaintext[:KeyPrefixLength],
	}, nil
}

// Fingerprint creates the SHA-256 digest of a secret used for store lookups.
func Fingerprint(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether plaintext matches a stored bcrypt hash.
func Verify(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}
