package apikey

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "moopoint/chat-api/internal/domain/apikey"
	"moopoint/chat-api/internal/infrastructure/database/entities"
	"moopoint/chat-api/internal/utils/platformerrors"
)

// Repository persists encrypted provider credentials.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an API key repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the key record.
func (r *Repository) Create(ctx context.Context, key *domain.APIKey) error {
	entity := entities.NewSchemaAPIKey(key)
	if entity.PublicID == "" {
		entity.PublicID = uuid.New().String()
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create api key",
			err,
			"16e0d9b4-7a3c-42f8-b5e6-c80f2d1a9573",
		)
	}

	key.ID = entity.ID
	key.PublicID = entity.PublicID
	key.CreatedAt = entity.CreatedAt
	return nil
}

// ListByUser fetches the user's stored keys newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.APIKey, error) {
	var rows []entities.APIKey
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list api keys",
			err,
			"a8f53c10-eb62-4d97-8041-f6d9e2c7b385",
		)
	}

	keys := make([]domain.APIKey, len(rows))
	for i := range rows {
		keys[i] = *rows[i].EtoD()
	}
	return keys, nil
}

// FindByPublicID fetches one key owned by the user.
func (r *Repository) FindByPublicID(ctx context.Context, userID, publicID string) (*domain.APIKey, error) {
	var entity entities.APIKey
	if err := r.db.WithContext(ctx).
		Where("public_id = ? AND user_id = ?", publicID, userID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("api key not found: %s", publicID),
				nil,
				"c529e7a6-08d1-4f3b-92c5-4b7e0a6d8f12",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch api key",
			err,
			"edc4ed05-3b84-4a61-bd97-2f0c8e5a1d36",
		)
	}

	return entity.EtoD(), nil
}

// FindByProvider returns the newest key for a provider, or nil when none is
// stored.
func (r *Repository) FindByProvider(ctx context.Context, userID, provider string) (*domain.APIKey, error) {
	var entity entities.APIKey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Order("created_at DESC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch api key",
			err,
			"70b4f8d1-25ce-49a7-83f0-e1d6c2b9a054",
		)
	}

	return entity.EtoD(), nil
}

// Delete removes one key owned by the user.
func (r *Repository) Delete(ctx context.Context, userID, publicID string) error {
	result := r.db.WithContext(ctx).
		Where("public_id = ? AND user_id = ?", publicID, userID).
		Delete(&entities.APIKey{})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete api key",
			result.Error,
			"39dc61e8-f507-4b2a-95d3-c8a4e0f6b217",
		)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("api key not found: %s", publicID),
			nil,
			"84a2c5f9-61db-4e08-b7c3-0d9f5e2a6b41",
		)
	}
	return nil
}
