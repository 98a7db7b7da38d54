package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moopoint/chat-api/internal/domain/catalog"
)

type fakeServerRepo struct {
	ListByUserFunc          func(ctx context.Context, userID string) ([]catalog.ToolServer, error)
	FindToolByShortCodeFunc func(ctx context.Context, userID, shortCode string) (*catalog.StoredTool, *catalog.ToolServer, error)
	ReplaceToolsFunc        func(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error
}

func (f *fakeServerRepo) ListByUser(ctx context.Context, userID string) ([]catalog.ToolServer, error) {
	if f.ListByUserFunc != nil {
		return f.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (f *fakeServerRepo) FindByPublicID(ctx context.Context, userID, publicID string) (*catalog.ToolServer, error) {
	return nil, nil
}

func (f *fakeServerRepo) FindToolByShortCode(ctx context.Context, userID, shortCode string) (*catalog.StoredTool, *catalog.ToolServer, error) {
	if f.FindToolByShortCodeFunc != nil {
		return f.FindToolByShortCodeFunc(ctx, userID, shortCode)
	}
	return nil, nil, nil
}

func (f *fakeServerRepo) Create(ctx context.Context, server *catalog.ToolServer) error { return nil }
func (f *fakeServerRepo) Update(ctx context.Context, server *catalog.ToolServer) error { return nil }
func (f *fakeServerRepo) Delete(ctx context.Context, userID, publicID string) error    { return nil }

func (f *fakeServerRepo) ReplaceTools(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error {
	if f.ReplaceToolsFunc != nil {
		return f.ReplaceToolsFunc(ctx, serverID, tools)
	}
	return nil
}

type fakePreconfiguredRepo struct {
	ListByUserFunc   func(ctx context.Context, userID string) ([]catalog.PreconfiguredServer, error)
	ReplaceToolsFunc func(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error
}

func (f *fakePreconfiguredRepo) ListByUser(ctx context.Context, userID string) ([]catalog.PreconfiguredServer, error) {
	if f.ListByUserFunc != nil {
		return f.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (f *fakePreconfiguredRepo) FindByCode(ctx context.Context, userID, code string) (*catalog.PreconfiguredServer, error) {
	return nil, nil
}

func (f *fakePreconfiguredRepo) Upsert(ctx context.Context, server *catalog.PreconfiguredServer) error {
	return nil
}

func (f *fakePreconfiguredRepo) ReplaceTools(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error {
	if f.ReplaceToolsFunc != nil {
		return f.ReplaceToolsFunc(ctx, serverID, tools)
	}
	return nil
}

type fakeToolClient struct {
	ListToolsFunc func(ctx context.Context, url string) ([]catalog.ToolDescriptor, error)
	CallToolFunc  func(ctx context.Context, url, name string, args map[string]any) ([]catalog.ContentItem, error)
}

func (f *fakeToolClient) ListTools(ctx context.Context, url string) ([]catalog.ToolDescriptor, error) {
	if f.ListToolsFunc != nil {
		return f.ListToolsFunc(ctx, url)
	}
	return nil, nil
}

func (f *fakeToolClient) CallTool(ctx context.Context, url, name string, args map[string]any) ([]catalog.ContentItem, error) {
	if f.CallToolFunc != nil {
		return f.CallToolFunc(ctx, url, name, args)
	}
	return nil, nil
}

func newResolver(servers *fakeServerRepo, preconfigured *fakePreconfiguredRepo, client *fakeToolClient) *catalog.Resolver {
	return catalog.NewResolver(servers, preconfigured, client, time.Second, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

func TestResolver_ResolveMergesBothCatalogs(t *testing.T) {
	servers := &fakeServerRepo{
		ListByUserFunc: func(ctx context.Context, userID string) ([]catalog.ToolServer, error) {
			return []catalog.ToolServer{{
				ID:  1,
				URL: "http://tools.local/mcp",
				Tools: []catalog.StoredTool{{
					ID:          10,
					ShortCode:   "ab12",
					Name:        "search",
					Description: strPtr("web search"),
					InputSchema: map[string]any{"type": "object", "$schema": "x"},
				}},
			}}, nil
		},
	}
	preconfigured := &fakePreconfiguredRepo{
		ListByUserFunc: func(ctx context.Context, userID string) ([]catalog.PreconfiguredServer, error) {
			return []catalog.PreconfiguredServer{
				{
					Code:    catalog.PreconfiguredFetch,
					Enabled: true,
					Tools:   []catalog.StoredTool{{Name: "fetch", Description: strPtr("fetch a URL")}},
				},
				{
					Code:    catalog.PreconfiguredSequentialThinking,
					Enabled: false,
					Tools:   []catalog.StoredTool{{Name: "sequentialthinking"}},
				},
			}, nil
		},
	}

	entries, err := newResolver(servers, preconfigured, &fakeToolClient{}).Resolve(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "ab12_u", entries[0].Code)
	assert.Equal(t, catalog.OriginUser, entries[0].Origin)
	assert.Equal(t, "search", entries[0].Tool.Name)
	assert.Equal(t, uint(10), entries[0].ToolID)
	assert.NotContains(t, entries[0].Tool.InputSchema, "$schema")

	assert.Equal(t, "fetch__fetch_p", entries[1].Code)
	assert.Equal(t, catalog.OriginPreconfigured, entries[1].Origin)
	assert.Zero(t, entries[1].ToolID)
}

func TestResolver_ResolveSkipsOverlongCodes(t *testing.T) {
	servers := &fakeServerRepo{
		ListByUserFunc: func(ctx context.Context, userID string) ([]catalog.ToolServer, error) {
			return []catalog.ToolServer{{
				Tools: []catalog.StoredTool{
					{ShortCode: strings.Repeat("x", 63), Name: "too_long"},
					{ShortCode: "ok99", Name: "fits"},
				},
			}}, nil
		},
	}

	entries, err := newResolver(servers, &fakePreconfiguredRepo{}, &fakeToolClient{}).Resolve(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok99_u", entries[0].Code)
}

func TestResolver_DispatchUserCode(t *testing.T) {
	servers := &fakeServerRepo{
		FindToolByShortCodeFunc: func(ctx context.Context, userID, shortCode string) (*catalog.StoredTool, *catalog.ToolServer, error) {
			require.Equal(t, "ab12", shortCode)
			return &catalog.StoredTool{ID: 7, Name: "search"},
				&catalog.ToolServer{URL: "http://tools.local/mcp"}, nil
		},
	}

	target, err := newResolver(servers, &fakePreconfiguredRepo{}, &fakeToolClient{}).
		Dispatch(context.Background(), "user-1", "ab12_u")

	require.NoError(t, err)
	assert.Equal(t, catalog.OriginUser, target.Origin)
	assert.Equal(t, "http://tools.local/mcp", target.URL)
	assert.Equal(t, "search", target.ToolName)
	require.NotNil(t, target.ToolID)
	assert.Equal(t, uint(7), *target.ToolID)
}

func TestResolver_DispatchPreconfiguredCode(t *testing.T) {
	target, err := newResolver(&fakeServerRepo{}, &fakePreconfiguredRepo{}, &fakeToolClient{}).
		Dispatch(context.Background(), "user-1", "fetch__fetch_p")

	require.NoError(t, err)
	assert.Equal(t, catalog.OriginPreconfigured, target.Origin)
	assert.Equal(t, "fetch", target.ToolName)
	assert.Nil(t, target.ToolID)

	url, ok := catalog.PreconfiguredURL(catalog.PreconfiguredFetch)
	require.True(t, ok)
	assert.Equal(t, url, target.URL)
}

func TestResolver_DispatchErrors(t *testing.T) {
	resolver := newResolver(&fakeServerRepo{}, &fakePreconfiguredRepo{}, &fakeToolClient{})

	tests := []struct {
		name string
		code string
	}{
		{"unknown short code", "nope_u"},
		{"malformed preconfigured code", "fetchonly_p"},
		{"unknown preconfigured server", "bogus__fetch_p"},
		{"no origin suffix", "plainname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Dispatch(context.Background(), "user-1", tt.code)
			assert.ErrorIs(t, err, catalog.ErrToolNotResolved)
		})
	}
}

func TestResolver_RefreshServerUnreachable(t *testing.T) {
	client := &fakeToolClient{
		ListToolsFunc: func(ctx context.Context, url string) ([]catalog.ToolDescriptor, error) {
			return nil, errors.New("connection refused")
		},
	}
	replaced := false
	servers := &fakeServerRepo{
		ReplaceToolsFunc: func(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error {
			replaced = true
			return nil
		},
	}

	err := newResolver(servers, &fakePreconfiguredRepo{}, client).
		RefreshServer(context.Background(), &catalog.ToolServer{ID: 1, URL: "http://down.local"})

	assert.ErrorIs(t, err, catalog.ErrServerUnreachable)
	assert.False(t, replaced)
}

func TestResolver_RefreshPreconfiguredFillsDescriptions(t *testing.T) {
	client := &fakeToolClient{
		ListToolsFunc: func(ctx context.Context, url string) ([]catalog.ToolDescriptor, error) {
			return []catalog.ToolDescriptor{{Name: "fetch"}}, nil
		},
	}
	var stored []catalog.ToolDescriptor
	preconfigured := &fakePreconfiguredRepo{
		ReplaceToolsFunc: func(ctx context.Context, serverID uint, tools []catalog.ToolDescriptor) error {
			stored = tools
			return nil
		},
	}

	err := newResolver(&fakeServerRepo{}, preconfigured, client).
		RefreshPreconfigured(context.Background(), &catalog.PreconfiguredServer{ID: 2, Code: catalog.PreconfiguredFetch})

	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].Description)
}
