package apikey

import (
	"context"
	"time"
)

// APIKey is a stored provider credential. KeyCiphertext is the encrypted key
// material; plaintext only exists transiently inside a turn.
type APIKey struct {
	ID            uint
	PublicID      string
	UserID        string
	Provider      string
	Name          string
	KeyCiphertext string
	CreatedAt     time.Time
}

// Repository stores provider credentials.
type Repository interface {
	Create(ctx context.Context, key *APIKey) error
	ListByUser(ctx context.Context, userID string) ([]APIKey, error)
	FindByPublicID(ctx context.Context, userID, publicID string) (*APIKey, error)
	// FindByProvider returns the user's most recent key for a provider, or nil
	// when none is stored.
	FindByProvider(ctx context.Context, userID, provider string) (*APIKey, error)
	Delete(ctx context.Context, userID, publicID string) error
}

// Cipher is the injected encryption capability for credentials at rest.
// Implementations own the key material lifecycle; nothing in the domain holds
// process-wide cipher state.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
