package upload

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Handler handles backup upload requests
type Handler struct {
	spoolDir string
}

// NewHandler creates a new upload handler writing into spoolDir.
func NewHandler(spoolDir string) *Handler {
	return &Handler{spoolDir: spoolDir}
}

// Put receives a backup payload and spools it to disk. The payload format
// is opaque; the name must be a plain filename with no path components.
func (h *Handler) Put(c *gin.Context) {
	name := c.Param("name")
	if !nameRegex.MatchString(name) || name != filepath.Base(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload name"})
		return
	}

	if err := os.MkdirAll(h.spoolDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare spool directory"})
		return
	}

	f, err := os.Create(filepath.Join(h.spoolDir, name))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open spool file"})
		return
	}
	defer f.Close()

	n, err := io.Copy(f, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "bytes": n})
}

// RegisterRoutes registers upload routes behind the credential middleware
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/upload/:name", h.Put)
}
