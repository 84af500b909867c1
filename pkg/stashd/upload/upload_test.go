package upload

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stashd/stashd/pkg/stashd/models"
	"github.com/stashd/stashd/pkg/stashd/secrets"
	"github.com/stashd/stashd/pkg/stashd/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(t *testing.T, s *store.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	handler := NewHandler(t.TempDir())
	handler.RegisterRoutes(r.Group("", CredentialAuthMiddleware(s)))

	return r
}

// createTestCredential issues a credential directly against the store and
// returns its id and plaintext secret.
func createTestCredential(t *testing.T, s *store.Store, name string) (string, string) {
	secret, err := secrets.Generate()
	if err != nil {
		t.Fatalf("Failed to generate secret: %v", err)
	}
	id, err := s.Insert(&models.Credential{
		Name:        name,
		Fingerprint: secret.Fingerprint,
		SecretHash:  secret.Hash,
		KeyPrefix:   secret.KeyPrefix,
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("Failed to insert credential: %v", err)
	}
	return id, secret.Plaintext
}

func doUpload(router *gin.Engine, name, authHeader string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("PUT", "/upload/"+name, bytes.NewBuffer(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestUploadWithValidCredential(t *testing.T) {
	s := store.New(setupTestDB(t))
	router := setupTestRouter(t, s)
	id, plaintext := createTestCredential(t, s, "backup")

	resp := doUpload(router, "snapshot-001.bin", "Bearer "+plaintext, []byte("payload"))
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	cred, err := s.GetByID(id)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cred.UsageCount != 1 {
		t.Errorf("Expected usage count 1, got %d", cred.UsageCount)
	}
	if cred.LastUsedAt == nil {
		t.Error("Expected last_used_at to be set")
	}

	// A second authenticated upload advances the counter again.
	resp = doUpload(router, "snapshot-002.bin", "Bearer "+plaintext, []byte("payload"))
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	cred, _ = s.GetByID(id)
	if cred.UsageCount != 2 {
		t.Errorf("Expected usage count 2, got %d", cred.UsageCount)
	}
}

func TestUploadWritesSpoolFile(t *testing.T) {
	s := store.New(setupTestDB(t))
	_, plaintext := createTestCredential(t, s, "backup")

	gin.SetMode(gin.TestMode)
	spoolDir := t.TempDir()
	r := gin.New()
	NewHandler(spoolDir).RegisterRoutes(r.Group("", CredentialAuthMiddleware(s)))

	payload := []byte("backup payload bytes")
	resp := doUpload(r, "snapshot-001.bin", "Bearer "+plaintext, payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	written, err := os.ReadFile(filepath.Join(spoolDir, "snapshot-001.bin"))
	if err != nil {
		t.Fatalf("Expected spool file to exist: %v", err)
	}
	if !bytes.Equal(written, payload) {
		t.Error("Spool file content does not match the upload")
	}
}

func TestUploadRejectsDisabledCredential(t *testing.T) {
	s := store.New(setupTestDB(t))
	router := setupTestRouter(t, s)
	id, plaintext := createTestCredential(t, s, "backup")

	if err := s.SetEnabled(id, false); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	resp := doUpload(router, "snapshot-001.bin", "Bearer "+plaintext, []byte("payload"))
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}

	cred, _ := s.GetByID(id)
	if cred.UsageCount != 0 {
		t.Errorf("Expected usage count to stay 0, got %d", cred.UsageCount)
	}
	if cred.LastUsedAt != nil {
		t.Error("Expected last_used_at to stay unset")
	}
}

func TestUploadRejectsDeletedCredential(t *testing.T) {
	s := store.New(setupTestDB(t))
	router := setupTestRouter(t, s)
	id, plaintext := createTestCredential(t, s, "backup")

	if err := s.Delete(id); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	resp := doUpload(router, "snapshot-001.bin", "Bearer "+plaintext, []byte("payload"))
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestUploadRejectionsAreUniform(t *testing.T) {
	s := store.New(setupTestDB(t))
	router := setupTestRouter(t, s)
	id, _ := createTestCredential(t, s, "backup")
	s.SetEnabled(id, false)

	// Missing header, malformed header, unknown secret, and disabled
	// credential must be indistinguishable to the caller.
	bodies := make(map[string]bool)
	for _, header := range []string{
		"",
		"Basic whatever",
		"Bearer 0000000000000000000000000000000000000000000000000000000000000000",
	} {
		resp := doUpload(router, "snapshot-001.bin", header, []byte("payload"))
		if resp.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401 for header %q, got %d", header, resp.Code)
		}
		bodies[resp.Body.String()] = true
	}
	if len(bodies) != 1 {
		t.Error("Expected identical rejection bodies for all failure causes")
	}
}

func TestUploadRejectsPathEscapingNames(t *testing.T) {
	s := store.New(setupTestDB(t))
	router := setupTestRouter(t, s)
	_, plaintext := createTestCredential(t, s, "backup")

	for _, name := range []string{"..", ".hidden", "snap+shot"} {
		resp := doUpload(router, name, "Bearer "+plaintext, []byte("payload"))
		if resp.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for name %q, got %d", name, resp.Code)
		}
	}
}
