package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stashd/stashd/pkg/stashd/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when an id or fingerprint resolves to no live credential.
	ErrNotFound = errors.New("credential not found")
	// ErrDuplicateName is returned when a credential name is already taken.
	ErrDuplicateName = errors.New("credential name already in use")
)

// Store is the authoritative record of issued credentials. All lifecycle
// and usage writes go through it; deletion is a soft delete, so removed
// rows keep their usage history but are invisible to every method here.
type Store struct {
	db *gorm.DB
}

// New creates a credential store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Insert assigns a fresh id and persists the credential.
// Name uniqueness is checked against live credentials only: a deleted
// credential does not reserve its name.
func (s *Store) Insert(cred *models.Credential) (string, error) {
	var count int64
	if err := s.db.Model(&models.Credential{}).Where("name = ?", cred.Name).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "", ErrDuplicateName
	}

	cred.ID = uuid.NewString()
	if err := s.db.Create(cred).Error; err != nil {
		return "", err
	}
	return cred.ID, nil
}

// ListAll returns all live credentials, newest first.
func (s *Store) ListAll() ([]models.Credential, error) {
	var creds []models.Credential
	if err := s.db.Order("created_at DESC").Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// GetByID returns the live credential with the given id.
func (s *Store) GetByID(id string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.Where("id = ?", id).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// FindByFingerprint resolves a secret digest to its credential. This is
// the authentication lookup: the fingerprint column carries a unique
// index, so the query is an index hit, not a scan.
func (s *Store) FindByFingerprint(fingerprint string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.db.Where("fingerprint = ?", fingerprint).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

// SetEnabled toggles whether the credential is accepted for authentication.
func (s *Store) SetEnabled(id string, enabled bool) error {
	res := s.db.Model(&models.Credential{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete soft-deletes the credential. A second delete of the same id
// returns ErrNotFound.
func (s *Store) Delete(id string) error {
	res := s.db.Where("id = ?", id).Delete(&models.Credential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordUsage increments the usage counter and advances last_used_at in a
// single UPDATE. The arithmetic happens in SQL, so concurrent calls on the
// same credential serialize in the engine without an application-side
// lock, and last_used_at never moves backwards.
func (s *Store) RecordUsage(id string, at time.Time) error {
	res := s.db.Model(&models.Credential{}).Where("id = ?", id).Updates(map[string]interface{}{
		"usage_count":  gorm.Expr("usage_count + 1"),
		"last_used_at": gorm.Expr("CASE WHEN last_used_at IS NULL OR last_used_at < ? THEN ? ELSE last_used_at END", at, at),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
