package mcpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"moopoint/chat-api/internal/domain/catalog"
	"moopoint/chat-api/internal/infrastructure/metrics"
)

const protocolVersion = "2025-06-18"

// Client talks MCP over streamable HTTP. Sessions are per call: each
// operation opens a fresh transport, initializes, runs and closes. Tool
// servers are remote and stateless from our side, so there is nothing worth
// pooling.
type Client struct {
	serviceName string
	log         zerolog.Logger
}

// NewClient builds an MCP tool server client.
func NewClient(serviceName string, log zerolog.Logger) *Client {
	return &Client{
		serviceName: serviceName,
		log:         log.With().Str("component", "mcpclient").Logger(),
	}
}

// ListTools fetches the tool definitions a server advertises.
func (c *Client) ListTools(ctx context.Context, url string) ([]catalog.ToolDescriptor, error) {
	session, err := c.connect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	result, err := session.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools from %s: %w", url, err)
	}

	tools := make([]catalog.ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, catalog.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}
	return tools, nil
}

// CallTool invokes one tool and returns its content items.
func (c *Client) CallTool(ctx context.Context, url, name string, args map[string]any) ([]catalog.ContentItem, error) {
	start := time.Now()
	items, err := c.callTool(ctx, url, name, args)
	metrics.ToolDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ToolCallsTotal.WithLabelValues("ok").Inc()
	return items, nil
}

func (c *Client) callTool(ctx context.Context, url, name string, args map[string]any) ([]catalog.ContentItem, error) {
	session, err := c.connect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	result, err := session.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call tool %s on %s: %w", name, url, err)
	}

	items := make([]catalog.ContentItem, 0, len(result.Content))
	for _, content := range result.Content {
		switch typed := content.(type) {
		case mcptypes.TextContent:
			items = append(items, catalog.ContentItem{Type: "text", Text: typed.Text})
		case *mcptypes.TextContent:
			items = append(items, catalog.ContentItem{Type: "text", Text: typed.Text})
		default:
			c.log.Debug().Str("tool", name).Msg("dropping non-text content item")
		}
	}

	if result.IsError && len(items) > 0 {
		return nil, fmt.Errorf("tool %s reported an error: %s", name, items[0].Text)
	}
	return items, nil
}

// connect opens and initializes a streamable HTTP session.
func (c *Client) connect(ctx context.Context, url string) (*client.Client, error) {
	session, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", url, err)
	}

	// Transport must be started before Initialize.
	if err := session.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("start transport for %s: %w", url, err)
	}

	_, err = session.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    c.serviceName,
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("initialize session with %s: %w", url, err)
	}

	return session, nil
}

func schemaToMap(schema mcptypes.ToolInputSchema) map[string]any {
	m := map[string]any{
		"type":       schema.Type,
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	if schema.Defs != nil {
		m["$defs"] = schema.Defs
	}
	return m
}
