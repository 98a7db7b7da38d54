package toolserver

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/infrastructure/database/entities"
	"moopoint/chat-api/internal/utils/platformerrors"
)

// PreconfiguredRepository persists per-user state for the built-in servers.
type PreconfiguredRepository struct {
	db *gorm.DB
}

// NewPreconfiguredRepository builds a preconfigured server repository.
func NewPreconfiguredRepository(db *gorm.DB) *PreconfiguredRepository {
	return &PreconfiguredRepository{db: db}
}

// ListByUser fetches the user's built-in server rows with cached tools.
func (r *PreconfiguredRepository) ListByUser(ctx context.Context, userID string) ([]catalog.PreconfiguredServer, error) {
	var rows []entities.PreconfiguredServer
	if err := r.db.WithContext(ctx).
		Preload("Tools").
		Where("user_id = ?", userID).
		Order("code ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list preconfigured servers",
			err,
			"3e81f6c0-9a2d-4573-bf18-06c4d2e9a785",
		)
	}

	servers := make([]catalog.PreconfiguredServer, len(rows))
	for i := range rows {
		servers[i] = *rows[i].EtoD()
	}
	return servers, nil
}

// FindByCode fetches one built-in server row; nil when the user never touched
// this server.
func (r *PreconfiguredRepository) FindByCode(ctx context.Context, userID, code string) (*catalog.PreconfiguredServer, error) {
	var entity entities.PreconfiguredServer
	err := r.db.WithContext(ctx).
		Preload("Tools").
		Where("user_id = ? AND code = ?", userID, code).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch preconfigured server",
			err,
			"b02d7e59-c613-48fa-a9e4-5f8c0d3b1a27",
		)
	}

	return entity.EtoD(), nil
}

// Upsert creates or updates the per-user enable flag for one built-in server.
func (r *PreconfiguredRepository) Upsert(ctx context.Context, server *catalog.PreconfiguredServer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity entities.PreconfiguredServer
		err := tx.Where("user_id = ? AND code = ?", server.UserID, server.Code).
			First(&entity).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entity = entities.PreconfiguredServer{
				UserID:  server.UserID,
				Code:    server.Code,
				Enabled: server.Enabled,
			}
			if err := tx.Create(&entity).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&entity).
				Update("enabled", server.Enabled).Error; err != nil {
				return err
			}
		}
		server.ID = entity.ID
		return nil
	})
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to upsert preconfigured server",
			err,
			"5c97a0e3-d84f-4b16-8230-7e1b9f6d4ca8",
		)
	}
	return nil
}

// ReplaceTools swaps a built-in server's cached tool rows in one transaction.
func (r *PreconfiguredRepository) ReplaceTools(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ?", serverID).
			Delete(&entities.PreconfiguredTool{}).Error; err != nil {
			return err
		}
		for _, tool := range tools {
			row := entities.PreconfiguredTool{
				ServerID:    serverID,
				Name:        tool.Name,
				Description: optional(tool.Description),
				InputSchema: entities.MarshalSchema(tool.InputSchema),
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to replace preconfigured tool rows",
			err,
			"d41b8c26-0f79-4e53-a1d8-92e6c5b0f347",
		)
	}
	return nil
}
