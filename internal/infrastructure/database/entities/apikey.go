package entities

import (
	"time"

	"moopoint/chat-api/internal/domain/apikey"
)

// APIKey represents the database schema for stored provider credentials. Key
// material is ciphertext; the column never holds plaintext.
type APIKey struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID      string `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID        string `gorm:"type:varchar(64);index:idx_apikey_user_provider;not null"`
	Provider      string `gorm:"type:varchar(32);index:idx_apikey_user_provider;not null"`
	Name          string `gorm:"type:varchar(128);not null"`
	KeyCiphertext string `gorm:"type:text;not null"`
}

// TableName specifies the table name for APIKey.
func (APIKey) TableName() string {
	return "api_keys"
}

// EtoD converts database entity to domain model
func (k *APIKey) EtoD() *apikey.APIKey {
	return &apikey.APIKey{
		ID:            k.ID,
		PublicID:      k.PublicID,
		UserID:        k.UserID,
		Provider:      k.Provider,
		Name:          k.Name,
		KeyCiphertext: k.KeyCiphertext,
		CreatedAt:     k.CreatedAt,
	}
}

// NewSchemaAPIKey creates a database entity from domain model
func NewSchemaAPIKey(k *apikey.APIKey) *APIKey {
	return &APIKey{
		ID:            k.ID,
		PublicID:      k.PublicID,
		UserID:        k.UserID,
		Provider:      k.Provider,
		Name:          k.Name,
		KeyCiphertext: k.KeyCiphertext,
	}
}
