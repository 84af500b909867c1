package antiforgery

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookieName is the cookie that identifies a managing client's session.
	SessionCookieName = "stashd_session"
	// TokenHeader carries the anti-forgery token on mutating requests.
	TokenHeader = "X-Antiforgery-Token"
)

// Handler serves the token-issue endpoint.
type Handler struct {
	gate *Gate
}

// NewHandler creates a new anti-forgery handler
func NewHandler(gate *Gate) *Handler {
	return &Handler{gate: gate}
}

// Issue hands the caller a fresh token bound to its session, creating the
// session cookie if this is the first contact.
func (h *Handler) Issue(c *gin.Context) {
	sessionID, err := c.Cookie(SessionCookieName)
	if err != nil || sessionID == "" {
		sessionID, err = newSessionID()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
			return
		}
		c.SetCookie(SessionCookieName, sessionID, 0, "/", "", false, true)
	}

	token, err := h.gate.Issue(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// RegisterRoutes registers the token-issue route
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/antiforgery", h.Issue)
}

// Middleware rejects any request whose anti-forgery token is missing,
// expired, already used, or bound to a different session. It runs before
// the handler, so a rejected request never reaches the store.
func Middleware(gate *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(TokenHeader)
		if token == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": ErrInvalidToken.Error()})
			c.Abort()
			return
		}

		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil {
			sessionID = ""
		}

		if err := gate.Validate(token, sessionID); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": ErrInvalidToken.Error()})
			c.Abort()
			return
		}

		c.Next()
	}
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
