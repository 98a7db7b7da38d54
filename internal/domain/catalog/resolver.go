package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/utils/platformerrors"
)

// Namespacing: a user tool code is its server-assigned short code plus the
// "u" origin suffix; a preconfigured tool code is serverCode__toolName plus
// the "p" suffix. The suffix alone routes a call back to the right resolution
// path. Backends cap function names at 64 characters, which is why stored
// short codes are bounded at 62.
const (
	suffixUser          = "_u"
	suffixPreconfigured = "_p"
	preconfiguredSep    = "__"
	maxCodeLength       = 64
)

// UserCode builds the namespaced code for a user-configured tool.
func UserCode(shortCode string) string {
	return shortCode + suffixUser
}

// PreconfiguredCode builds the namespaced code for a built-in server's tool.
func PreconfiguredCode(serverCode, toolName string) string {
	return serverCode + preconfiguredSep + toolName + suffixPreconfigured
}

// Resolver merges the two tool-server catalogs into one namespaced list and
// routes proposed calls back to their origin.
type Resolver struct {
	servers       ServerRepository
	preconfigured PreconfiguredRepository
	client        ToolServerClient
	listTimeout   time.Duration
	log           zerolog.Logger
}

// NewResolver constructs a catalog resolver.
func NewResolver(
	servers ServerRepository,
	preconfigured PreconfiguredRepository,
	client ToolServerClient,
	listTimeout time.Duration,
	log zerolog.Logger,
) *Resolver {
	return &Resolver{
		servers:       servers,
		preconfigured: preconfigured,
		client:        client,
		listTimeout:   listTimeout,
		log:           log.With().Str("component", "catalog").Logger(),
	}
}

// Resolve builds the merged catalog for one user from the stored tool rows.
// Input schemas are sanitized here so nothing non-portable leaves the
// resolver. Entries whose code would exceed the backend name limit are
// skipped and logged rather than truncated.
func (r *Resolver) Resolve(ctx context.Context, userID string) ([]Entry, error) {
	var entries []Entry

	servers, err := r.servers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, server := range servers {
		for _, tool := range server.Tools {
			code := UserCode(tool.ShortCode)
			if len(code) > maxCodeLength {
				r.log.Warn().Str("code", code).Msg("tool code exceeds backend name limit, skipping")
				continue
			}
			entries = append(entries, Entry{
				Code:   code,
				Origin: OriginUser,
				Tool: ToolDescriptor{
					Name:        tool.Name,
					Description: derefString(tool.Description),
					InputSchema: SanitizeSchema(tool.InputSchema),
				},
				ToolID: tool.ID,
			})
		}
	}

	preconfigured, err := r.preconfigured.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, server := range preconfigured {
		if !server.Enabled {
			continue
		}
		for _, tool := range server.Tools {
			code := PreconfiguredCode(server.Code, tool.Name)
			if len(code) > maxCodeLength {
				r.log.Warn().Str("code", code).Msg("tool code exceeds backend name limit, skipping")
				continue
			}
			entries = append(entries, Entry{
				Code:   code,
				Origin: OriginPreconfigured,
				Tool: ToolDescriptor{
					Name:        tool.Name,
					Description: derefString(tool.Description),
					InputSchema: SanitizeSchema(tool.InputSchema),
				},
			})
		}
	}

	return entries, nil
}

// Dispatch maps a namespaced code back to a concrete invocation target. The
// routing is a pure function of the suffix: user codes look up the short code
// in the user's configured servers, preconfigured codes split on the
// separator to recover the built-in server and bare tool name.
func (r *Resolver) Dispatch(ctx context.Context, userID, code string) (*Target, error) {
	switch {
	case strings.HasSuffix(code, suffixUser):
		shortCode := strings.TrimSuffix(code, suffixUser)
		tool, server, err := r.servers.FindToolByShortCode(ctx, userID, shortCode)
		if err != nil {
			return nil, err
		}
		if tool == nil || server == nil {
			return nil, fmt.Errorf("%w: no tool for short code %q", ErrToolNotResolved, shortCode)
		}
		toolID := tool.ID
		return &Target{
			Origin:   OriginUser,
			URL:      server.URL,
			ToolName: tool.Name,
			ToolID:   &toolID,
		}, nil

	case strings.HasSuffix(code, suffixPreconfigured):
		body := strings.TrimSuffix(code, suffixPreconfigured)
		serverCode, toolName, found := strings.Cut(body, preconfiguredSep)
		if !found || serverCode == "" || toolName == "" {
			return nil, fmt.Errorf("%w: malformed preconfigured code %q", ErrToolNotResolved, code)
		}
		url, ok := PreconfiguredURL(serverCode)
		if !ok {
			return nil, fmt.Errorf("%w: unknown preconfigured server %q", ErrToolNotResolved, serverCode)
		}
		return &Target{
			Origin:   OriginPreconfigured,
			URL:      url,
			ToolName: toolName,
		}, nil
	}

	return nil, fmt.Errorf("%w: code %q carries no origin suffix", ErrToolNotResolved, code)
}

// RefreshServer replaces a user server's cached tool list with the live one.
// An unreachable server is a configuration error and leaves the stored rows
// untouched.
func (r *Resolver) RefreshServer(ctx context.Context, server *ToolServer) error {
	listCtx, cancel := context.WithTimeout(ctx, r.listTimeout)
	defer cancel()

	tools, err := r.client.ListTools(listCtx, server.URL)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeExternal,
			fmt.Sprintf("refresh tool server %s", server.PublicID),
			fmt.Errorf("%w: %w", ErrServerUnreachable, err),
			"6c1d9a44-02be-4f1a-9c71-58c0a2f3d9e1",
		)
	}

	return r.servers.ReplaceTools(ctx, server.ID, tools)
}

// RefreshPreconfigured replaces a built-in server's cached tool list.
func (r *Resolver) RefreshPreconfigured(ctx context.Context, server *PreconfiguredServer) error {
	url, ok := PreconfiguredURL(server.Code)
	if !ok {
		return fmt.Errorf("%w: unknown preconfigured server %q", ErrToolNotResolved, server.Code)
	}

	listCtx, cancel := context.WithTimeout(ctx, r.listTimeout)
	defer cancel()

	tools, err := r.client.ListTools(listCtx, url)
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeExternal,
			fmt.Sprintf("refresh preconfigured server %s", server.Code),
			fmt.Errorf("%w: %w", ErrServerUnreachable, err),
			"a4e7c2f0-5d83-49bb-8d26-1f9e6b07c358",
		)
	}

	if fallback, ok := preconfiguredDescriptions[server.Code]; ok {
		for i := range tools {
			if tools[i].Description == "" {
				tools[i].Description = fallback
			}
		}
	}

	return r.preconfigured.ReplaceTools(ctx, server.ID, tools)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
