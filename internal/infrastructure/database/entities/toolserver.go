package entities

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"moopoint/chat-api/internal/domain/catalog"
)

// ToolServer represents the database schema for user-configured tool servers.
type ToolServer struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID string `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID   string `gorm:"type:varchar(64);index;not null"`
	Name     string `gorm:"type:varchar(128);not null"`
	URL      string `gorm:"type:varchar(512);not null"`

	Tools []Tool `gorm:"foreignKey:ServerID"`
}

// TableName specifies the table name for ToolServer.
func (ToolServer) TableName() string {
	return "tool_servers"
}

// Tool is one cached tool row under a user tool server. ShortCode is bounded
// at 62 characters so the namespaced form stays within backend name limits.
type Tool struct {
	ID          uint           `gorm:"primaryKey"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	ServerID    uint           `gorm:"index;not null"`
	ShortCode   string         `gorm:"type:varchar(62);uniqueIndex;not null"`
	Name        string         `gorm:"type:varchar(128);not null"`
	Description *string        `gorm:"type:text"`
	InputSchema datatypes.JSON `gorm:"type:jsonb"`
}

// TableName specifies the table name for Tool.
func (Tool) TableName() string {
	return "tools"
}

// PreconfiguredServer stores per-user state for one built-in server.
type PreconfiguredServer struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	UserID  string `gorm:"type:varchar(64);uniqueIndex:idx_preconfigured_user_code;not null"`
	Code    string `gorm:"type:varchar(32);uniqueIndex:idx_preconfigured_user_code;not null"`
	Enabled bool   `gorm:"not null;default:false"`

	Tools []PreconfiguredTool `gorm:"foreignKey:ServerID"`
}

// TableName specifies the table name for PreconfiguredServer.
func (PreconfiguredServer) TableName() string {
	return "preconfigured_servers"
}

// PreconfiguredTool is one cached tool row under a built-in server. These rows
// carry no short code; they are addressed by server code and tool name.
type PreconfiguredTool struct {
	ID          uint           `gorm:"primaryKey"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	ServerID    uint           `gorm:"index;not null"`
	Name        string         `gorm:"type:varchar(128);not null"`
	Description *string        `gorm:"type:text"`
	InputSchema datatypes.JSON `gorm:"type:jsonb"`
}

// TableName specifies the table name for PreconfiguredTool.
func (PreconfiguredTool) TableName() string {
	return "preconfigured_tools"
}

// EtoD converts database entity to domain model
func (s *ToolServer) EtoD() *catalog.ToolServer {
	tools := make([]catalog.StoredTool, len(s.Tools))
	for i, tool := range s.Tools {
		tools[i] = *tool.EtoD()
	}
	return &catalog.ToolServer{
		ID:        s.ID,
		PublicID:  s.PublicID,
		UserID:    s.UserID,
		Name:      s.Name,
		URL:       s.URL,
		Tools:     tools,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// NewSchemaToolServer creates a database entity from domain model
func NewSchemaToolServer(s *catalog.ToolServer) *ToolServer {
	return &ToolServer{
		ID:       s.ID,
		PublicID: s.PublicID,
		UserID:   s.UserID,
		Name:     s.Name,
		URL:      s.URL,
	}
}

// EtoD converts database entity to domain model
func (t *Tool) EtoD() *catalog.StoredTool {
	return &catalog.StoredTool{
		ID:          t.ID,
		ServerID:    t.ServerID,
		ShortCode:   t.ShortCode,
		Name:        t.Name,
		Description: t.Description,
		InputSchema: unmarshalSchema(t.InputSchema),
	}
}

// EtoD converts database entity to domain model
func (s *PreconfiguredServer) EtoD() *catalog.PreconfiguredServer {
	tools := make([]catalog.StoredTool, len(s.Tools))
	for i, tool := range s.Tools {
		tools[i] = catalog.StoredTool{
			ID:          tool.ID,
			ServerID:    tool.ServerID,
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: unmarshalSchema(tool.InputSchema),
		}
	}
	return &catalog.PreconfiguredServer{
		ID:      s.ID,
		UserID:  s.UserID,
		Code:    s.Code,
		Enabled: s.Enabled,
		Tools:   tools,
	}
}

func unmarshalSchema(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return schema
}

// MarshalSchema encodes an input schema for a jsonb column.
func MarshalSchema(schema map[string]any) datatypes.JSON {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	return data
}
