package models

import (
	"time"

	"gorm.io/gorm"
)

// Credential is a long-lived bearer credential issued to an automated
// backup client. The plaintext secret is never stored: Fingerprint is a
// SHA-256 digest used for authentication lookups, SecretHash is a bcrypt
// hash checked after the lookup. Both are set at creation and never
// updated.
type Credential struct {
	ID          string         `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null;index" json:"name"`
	Description string         `json:"description"`
	Fingerprint string         `gorm:"uniqueIndex;not null" json:"-"`
	SecretHash  []byte         `gorm:"not null" json:"-"`
	KeyPrefix   string         `gorm:"not null" json:"key_prefix"` // First few chars for identification
	Enabled     bool           `gorm:"default:true" json:"enabled"`
	LastUsedAt  *time.Time     `json:"last_used_at"`
	UsageCount  uint           `gorm:"default:0" json:"usage_count"`
}
