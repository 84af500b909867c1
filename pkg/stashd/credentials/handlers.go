package credentials

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stashd/stashd/pkg/stashd/models"
	"github.com/stashd/stashd/pkg/stashd/secrets"
	"github.com/stashd/stashd/pkg/stashd/store"
)

// SecretMessage is returned alongside the plaintext secret at creation.
const SecretMessage = "Store this secret now. It is shown only once and cannot be retrieved later."

// Handler handles credential lifecycle requests
type Handler struct {
	store *store.Store
}

// NewHandler creates a new credentials handler
func NewHandler(s *store.Store) *Handler {
	return &Handler{store: s}
}

// CredentialResponse represents a credential in listings. The secret and
// its digests have no field here, so they cannot leak through a listing.
type CredentialResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	KeyPrefix   string     `json:"key_prefix"`
	Enabled     bool       `json:"enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	UsageCount  uint       `json:"usage_count"`
}

// CreateCredentialRequest represents a request to create a credential
type CreateCredentialRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateCredentialResponse includes the plaintext secret (only shown once)
type CreateCredentialResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"key_prefix"`
	Secret    string    `json:"secret"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// SetEnabledRequest represents a request to enable or disable a credential
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Create issues a new credential and returns the plaintext secret.
// This is the only response that ever carries the secret.
func (h *Handler) Create(c *gin.Context) {
	var req CreateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	secret, err := secrets.Generate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate credential secret"})
		return
	}

	cred := models.Credential{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Fingerprint: secret.Fingerprint,
		SecretHash:  secret.Hash,
		KeyPrefix:   secret.KeyPrefix,
		Enabled:     true,
	}

	id, err := h.store.Insert(&cred)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			c.JSON(http.StatusConflict, gin.H{"error": "A credential with this name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create credential"})
		return
	}

	c.JSON(http.StatusCreated, CreateCredentialResponse{
		ID:        id,
		Name:      cred.Name,
		KeyPrefix: cred.KeyPrefix,
		Secret:    secret.Plaintext,
		Message:   SecretMessage,
		CreatedAt: cred.CreatedAt,
	})
}

// List returns metadata for all live credentials, newest first.
func (h *Handler) List(c *gin.Context) {
	creds, err := h.store.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch credentials"})
		return
	}

	responses := make([]CredentialResponse, len(creds))
	for i, cred := range creds {
		responses[i] = CredentialResponse{
			ID:          cred.ID,
			Name:        cred.Name,
			Description: cred.Description,
			KeyPrefix:   cred.KeyPrefix,
			Enabled:     cred.Enabled,
			CreatedAt:   cred.CreatedAt,
			LastUsedAt:  cred.LastUsedAt,
			UsageCount:  cred.UsageCount,
		}
	}

	c.JSON(http.StatusOK, responses)
}

// SetEnabled toggles whether a credential is accepted for authentication.
func (h *Handler) SetEnabled(c *gin.Context) {
	var req SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.store.SetEnabled(c.Param("id"), *req.Enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a credential. Deletion is terminal: a repeat delete of
// the same id reports not found.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Credential deleted"})
}

// RegisterRoutes registers credential routes. Every mutating route sits
// behind the anti-forgery middleware; listing does not.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, requireToken gin.HandlerFunc) {
	rg.GET("/credentials", h.List)
	rg.POST("/credentials", requireToken, h.Create)
	rg.PATCH("/credentials/:id", requireToken, h.SetEnabled)
	rg.DELETE("/credentials/:id", requireToken, h.Delete)
}
