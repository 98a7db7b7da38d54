package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrToolNotResolved is returned when a catalog code cannot be mapped back
	// to a concrete tool.
	ErrToolNotResolved = errors.New("tool code did not resolve to a configured tool")
	// ErrServerUnreachable is returned when a tool server cannot be reached,
	// either during a catalog refresh or an approved invocation.
	ErrServerUnreachable = errors.New("tool server unreachable")
)

// Origin marks which catalog half an entry came from.
type Origin string

const (
	OriginUser          Origin = "user"
	OriginPreconfigured Origin = "preconfigured"
)

// ToolDescriptor is a provider-agnostic tool definition.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Entry is a ToolDescriptor projected into the merged namespace. Entries are
// recomputed per turn and never persisted.
type Entry struct {
	Code   string
	Origin Origin
	Tool   ToolDescriptor
	// ToolID references the stored tool row for user tools; zero for
	// preconfigured tools.
	ToolID uint
}

// Target is the result of dispatching a catalog code back to its origin.
type Target struct {
	Origin   Origin
	URL      string
	ToolName string
	ToolID   *uint
}

// ToolServer is a user-configured remote tool server.
type ToolServer struct {
	ID        uint
	PublicID  string
	UserID    string
	Name      string
	URL       string
	Tools     []StoredTool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StoredTool is a cached tool row under a tool server or preconfigured
// server. ShortCode is assigned when the row is written and is unique across
// all user tools; it is empty for preconfigured tools, which are addressed by
// server code and tool name instead.
type StoredTool struct {
	ID          uint
	ServerID    uint
	ShortCode   string
	Name        string
	Description *string
	InputSchema map[string]any
}

// PreconfiguredServer is a per-user enable flag plus cached tool list for one
// of the built-in servers.
type PreconfiguredServer struct {
	ID      uint
	UserID  string
	Code    string
	Enabled bool
	Tools   []StoredTool
}

// ServerRepository stores user tool-server configurations.
type ServerRepository interface {
	ListByUser(ctx context.Context, userID string) ([]ToolServer, error)
	FindByPublicID(ctx context.Context, userID, publicID string) (*ToolServer, error)
	// FindToolByShortCode resolves a tool short code within one user's
	// configured servers. Both returns are nil when nothing matches.
	FindToolByShortCode(ctx context.Context, userID, shortCode string) (*StoredTool, *ToolServer, error)
	Create(ctx context.Context, server *ToolServer) error
	Update(ctx context.Context, server *ToolServer) error
	Delete(ctx context.Context, userID, publicID string) error
	// ReplaceTools swaps the cached tool rows for a server in one transaction
	// so a failed refresh never leaves a partial list behind.
	ReplaceTools(ctx context.Context, serverID uint, tools []ToolDescriptor) error
}

// PreconfiguredRepository stores per-user state for the built-in servers.
type PreconfiguredRepository interface {
	ListByUser(ctx context.Context, userID string) ([]PreconfiguredServer, error)
	FindByCode(ctx context.Context, userID, code string) (*PreconfiguredServer, error)
	Upsert(ctx context.Context, server *PreconfiguredServer) error
	ReplaceTools(ctx context.Context, serverID uint, tools []ToolDescriptor) error
}

// ContentItem is one piece of a tool invocation response.
type ContentItem struct {
	Type string
	Text string
}

// ToolServerClient opens sessions against remote tool servers.
type ToolServerClient interface {
	ListTools(ctx context.Context, url string) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, url, name string, args map[string]any) ([]ContentItem, error)
}
