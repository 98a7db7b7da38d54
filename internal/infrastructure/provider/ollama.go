package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"moopoint/chat-api/internal/domain/llm"
)

// Ollama streams chat completions from a local or remote Ollama instance.
// No credential is involved; the adapter ignores Request.Credential.
type Ollama struct {
	baseURL string
}

// NewOllama builds the Ollama adapter.
func NewOllama(baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Ollama{baseURL: baseURL}
}

// Name implements llm.Adapter.
func (a *Ollama) Name() string {
	return "ollama"
}

// StreamCompletion implements llm.Adapter. The Ollama client is push-based,
// so a goroutine feeds its callback output into a channel the Stream pulls
// from. Closing the stream cancels the goroutine's context.
func (a *Ollama) StreamCompletion(ctx context.Context, req llm.Request) (llm.Stream, error) {
	parsed, err := url.Parse(a.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	client := api.NewClient(parsed, http.DefaultClient)

	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: toOllamaMessages(req.Messages),
		Stream:   func(b bool) *bool { return &b }(true),
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOllamaTools(req.Tools)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := &ollamaStream{
		chunks: make(chan llm.Chunk, 16),
		errCh:  make(chan error, 1),
		cancel: cancel,
	}

	go func() {
		err := client.Chat(streamCtx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				stream.send(streamCtx, llm.Chunk{Text: resp.Message.Content})
			}
			for _, call := range resp.Message.ToolCalls {
				args, err := json.Marshal(map[string]any(call.Function.Arguments))
				if err != nil {
					return fmt.Errorf("encode tool call arguments: %w", err)
				}
				// Ollama delivers each call whole, so one chunk carries the
				// start, the name and the full argument text.
				stream.send(streamCtx, llm.Chunk{
					CallStart: true,
					ToolName:  call.Function.Name,
					ArgsDelta: string(args),
				})
			}
			return nil
		})
		stream.errCh <- err
		close(stream.chunks)
	}()

	return stream, nil
}

type ollamaStream struct {
	chunks chan llm.Chunk
	errCh  chan error
	cancel context.CancelFunc
	final  error
	done   bool
}

func (s *ollamaStream) send(ctx context.Context, chunk llm.Chunk) {
	select {
	case s.chunks <- chunk:
	case <-ctx.Done():
	}
}

func (s *ollamaStream) Recv() (*llm.Chunk, error) {
	chunk, ok := <-s.chunks
	if !ok {
		if !s.done {
			s.done = true
			s.final = <-s.errCh
		}
		if s.final != nil {
			return nil, s.final
		}
		return nil, io.EOF
	}
	return &chunk, nil
}

func (s *ollamaStream) Close() error {
	s.cancel()
	return nil
}

func toOllamaMessages(turns []llm.Turn) []api.Message {
	messages := make([]api.Message, len(turns))
	for i, turn := range turns {
		messages[i] = api.Message{Role: turn.Role, Content: turn.Content}
	}
	return messages
}

func toOllamaTools(tools []llm.ToolSpec) []api.Tool {
	result := make([]api.Tool, len(tools))
	for i, tool := range tools {
		result[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  toOllamaParameters(tool.Parameters),
			},
		}
	}
	return result
}

func toOllamaParameters(schema map[string]any) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Properties: make(map[string]api.ToolProperty),
	}
	if t, ok := schema["type"].(string); ok {
		params.Type = t
	}
	params.Required = stringSlice(schema["required"])

	props, _ := schema["properties"].(map[string]any)
	for name, value := range props {
		params.Properties[name] = toOllamaProperty(value)
	}
	return params
}

func toOllamaProperty(value any) api.ToolProperty {
	prop := api.ToolProperty{}
	m, ok := value.(map[string]any)
	if !ok {
		return prop
	}

	switch t := m["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []any:
		prop.Type = api.PropertyType(stringSlice(t))
	case []string:
		prop.Type = api.PropertyType(t)
	}
	if desc, ok := m["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := m["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := m["items"]; ok {
		prop.Items = items
	}
	return prop
}
