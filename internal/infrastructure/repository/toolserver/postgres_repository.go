package toolserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/infrastructure/database/entities"
	"moopoint/chat-api/internal/utils/platformerrors"
)

// Repository persists user tool servers and their cached tool rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a tool server repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser fetches the user's configured servers with their cached tools.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]catalog.ToolServer, error) {
	var rows []entities.ToolServer
	if err := r.db.WithContext(ctx).
		Preload("Tools").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list tool servers",
			err,
			"4d90e2a7-1b56-4c38-af02-8e7d3c1f5b69",
		)
	}

	servers := make([]catalog.ToolServer, len(rows))
	for i := range rows {
		servers[i] = *rows[i].EtoD()
	}
	return servers, nil
}

// FindByPublicID fetches one server owned by the user.
func (r *Repository) FindByPublicID(ctx context.Context, userID, publicID string) (*catalog.ToolServer, error) {
	var entity entities.ToolServer
	if err := r.db.WithContext(ctx).
		Preload("Tools").
		Where("public_id = ? AND user_id = ?", publicID, userID).
		First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				fmt.Sprintf("tool server not found: %s", publicID),
				nil,
				"a19c5e70-6d2f-4b84-93a0-c5f7e2d8b316",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch tool server",
			err,
			"e7412f8d-0c93-45ba-b6e1-2a8d5f0c9374",
		)
	}

	return entity.EtoD(), nil
}

// FindToolByShortCode resolves a short code to its tool row and owning server,
// scoped to the user. Both returns are nil when nothing matches.
func (r *Repository) FindToolByShortCode(ctx context.Context, userID, shortCode string) (*catalog.StoredTool, *catalog.ToolServer, error) {
	var tool entities.Tool
	err := r.db.WithContext(ctx).
		Joins("JOIN tool_servers ON tool_servers.id = tools.server_id").
		Where("tools.short_code = ? AND tool_servers.user_id = ?", shortCode, userID).
		First(&tool).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to resolve tool short code",
			err,
			"2c6f8a91-e35d-470b-94c7-d1b0e6f3a582",
		)
	}

	var server entities.ToolServer
	if err := r.db.WithContext(ctx).First(&server, tool.ServerID).Error; err != nil {
		return nil, nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to fetch tool server",
			err,
			"9b04d7c2-58fa-41e6-a3d9-7e2c1f8b0654",
		)
	}

	return tool.EtoD(), server.EtoD(), nil
}

// Create inserts the server record.
func (r *Repository) Create(ctx context.Context, server *catalog.ToolServer) error {
	entity := entities.NewSchemaToolServer(server)
	if entity.PublicID == "" {
		entity.PublicID = uuid.New().String()
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create tool server",
			err,
			"f35a1d08-72be-4c69-85f2-0d9e4a6c1b37",
		)
	}

	server.ID = entity.ID
	server.PublicID = entity.PublicID
	server.CreatedAt = entity.CreatedAt
	server.UpdatedAt = entity.UpdatedAt
	return nil
}

// Update persists name and URL changes.
func (r *Repository) Update(ctx context.Context, server *catalog.ToolServer) error {
	result := r.db.WithContext(ctx).
		Model(&entities.ToolServer{}).
		Where("id = ?", server.ID).
		Updates(map[string]any{"name": server.Name, "url": server.URL})
	if result.Error != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to update tool server",
			result.Error,
			"61e8b3f5-a90d-4721-bc64-3f5a2d7e0c98",
		)
	}
	return nil
}

// Delete removes a server and its cached tools.
func (r *Repository) Delete(ctx context.Context, userID, publicID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity entities.ToolServer
		if err := tx.Where("public_id = ? AND user_id = ?", publicID, userID).
			First(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return platformerrors.NewError(
					ctx,
					platformerrors.LayerRepository,
					platformerrors.ErrorTypeNotFound,
					fmt.Sprintf("tool server not found: %s", publicID),
					nil,
					"07c2e9a4-3db8-4f15-96e0-b58d1c7f2a63",
				)
			}
			return err
		}
		if err := tx.Where("server_id = ?", entity.ID).
			Delete(&entities.Tool{}).Error; err != nil {
			return err
		}
		return tx.Delete(&entity).Error
	})
}

// ReplaceTools swaps a server's cached tool rows in one transaction. New rows
// get fresh short codes; a failed insert rolls back to the previous list.
func (r *Repository) ReplaceTools(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ?", serverID).
			Delete(&entities.Tool{}).Error; err != nil {
			return err
		}
		for _, tool := range tools {
			row := entities.Tool{
				ServerID:    serverID,
				ShortCode:   newShortCode(),
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
			"failed to replace tool rows",
			err,
			"8f60d1b9-45ce-4a72-b083-e2c9f7a5d146",
		)
	}
	return nil
}

// newShortCode returns a compact unique code that stays within the 62
// character column bound after namespacing.
func newShortCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
