package antiforgery

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid anti-forgery token")
	ErrExpiredToken = errors.New("anti-forgery token has expired")
)

// DefaultWindow is how long an issued token stays valid.
const DefaultWindow = 10 * time.Minute

// getSecret returns the signing secret from environment or a default for development
func getSecret() []byte {
	secret := os.Getenv("STASHD_ANTIFORGERY_SECRET")
	if secret == "" {
		// Default for development only - should be set in production
		secret = "stashd-dev-secret-change-in-production"
	}
	return []byte(secret)
}

// Gate issues and validates the tokens that must accompany every mutating
// credential operation. A token is an HMAC-signed JWT bound to the
// caller's session: it expires after the validity window and is consumed
// on first successful validation, whichever comes first.
type Gate struct {
	secret []byte
	window time.Duration

	mu       sync.Mutex
	consumed map[string]time.Time // jti -> consumption time
}

// New creates a gate with the given validity window.
func New(window time.Duration) *Gate {
	return &Gate{
		secret:   getSecret(),
		window:   window,
		consumed: make(map[string]time.Time),
	}
}

// Issue creates a fresh single-use token bound to sessionID. Issuing is a
// pure read with respect to the credential store; no state changes until
// the token is presented.
func (g *Gate) Issue(sessionID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		ID:        hex.EncodeToString(nonce),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.window)),
		Issuer:    "stashd",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

// Validate checks that tokenString was issued for sessionID, has not
// expired, and has not been used before. On success the token is consumed
// and will not validate again.
func (g *Gate) Validate(tokenString, sessionID string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return g.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid || claims.ID == "" {
		return ErrInvalidToken
	}
	if sessionID == "" || claims.Subject != sessionID {
		return ErrInvalidToken
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	if _, used := g.consumed[claims.ID]; used {
		return ErrInvalidToken
	}
	g.consumed[claims.ID] = time.Now()
	return nil
}

// sweepLocked drops consumed entries older than the validity window; the
// tokens they belonged to fail the expiry check by then anyway.
func (g *Gate) sweepLocked() {
	cutoff := time.Now().Add(-g.window)
	for jti, at := range g.consumed {
		if at.Before(cutoff) {
			delete(g.consumed, jti)
		}
	}
}
