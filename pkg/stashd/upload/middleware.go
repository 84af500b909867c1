package upload

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stashd/stashd/pkg/stashd/secrets"
	"github.com/stashd/stashd/pkg/stashd/store"
)

// ContextKeyCredentialID is the key for the authenticated credential id in gin context
const ContextKeyCredentialID = "credential_id"

// unauthorizedBody is the single response body for every authentication
// failure. It must not reveal whether the secret was malformed, unknown,
// or belongs to a disabled credential.
var unauthorizedBody = gin.H{"error": "invalid credentials"}

// CredentialAuthMiddleware authenticates upload requests with a stored
// credential. The presented secret is passed as "Bearer <secret>" in the
// Authorization header. On success the usage counter is advanced before
// the handler runs; on any failure nothing is written.
func CredentialAuthMiddleware(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, unauthorizedBody)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, unauthorizedBody)
			c.Abort()
			return
		}
		secret := parts[1]

		cred, err := s.FindByFingerprint(secrets.Fingerprint(secret))
		if err != nil || !secrets.Verify(cred.SecretHash, secret) || !cred.Enabled {
			c.JSON(http.StatusUnauthorized, unauthorizedBody)
			c.Abort()
			return
		}

		// Recorded synchronously: the counter must reflect this request by
		// the time the response is sent.
		if err := s.RecordUsage(cred.ID, time.Now()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record credential usage"})
			c.Abort()
			return
		}

		c.Set(ContextKeyCredentialID, cred.ID)
		c.Next()
	}
}
