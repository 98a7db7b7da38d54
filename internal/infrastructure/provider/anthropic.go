package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"moopoint/chat-api/internal/domain/llm"
)

const anthropicMaxTokens = 4096

// Anthropic streams chat completions through the official Anthropic SDK.
type Anthropic struct {
	baseURL string
}

// NewAnthropic builds the Anthropic adapter.
func NewAnthropic(baseURL string) *Anthropic {
	return &Anthropic{baseURL: baseURL}
}

// Name implements llm.Adapter.
func (a *Anthropic) Name() string {
	return "anthropic"
}

// StreamCompletion implements llm.Adapter.
func (a *Anthropic) StreamCompletion(ctx context.Context, req llm.Request) (llm.Stream, error) {
	opts := []option.RequestOption{option.WithAPIKey(req.Credential)}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	client := anthropic.NewClient(opts...)

	messages, system := toAnthropicMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}

	inner := client.Messages.NewStreaming(ctx, params)
	return &anthropicStream{inner: inner}, nil
}

type anthropicStream struct {
	inner   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	pending []llm.Chunk
}

func (s *anthropicStream) Recv() (*llm.Chunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return &chunk, nil
		}

		if !s.inner.Next() {
			if err := s.inner.Err(); err != nil {
				return nil, mapAnthropicError(err)
			}
			return nil, io.EOF
		}

		event := s.inner.Current()
		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if block, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				s.pending = append(s.pending, llm.Chunk{
					CallStart: true,
					CallID:    block.ID,
					ToolName:  block.Name,
				})
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := variant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				s.pending = append(s.pending, llm.Chunk{Text: delta.Text})
			case anthropic.InputJSONDelta:
				s.pending = append(s.pending, llm.Chunk{ArgsDelta: delta.PartialJSON})
			}
		}
	}
}

func (s *anthropicStream) Close() error {
	return s.inner.Close()
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
		return fmt.Errorf("%w: %v", llm.ErrAuth, err)
	}
	return err
}

// toAnthropicMessages splits system turns out of the sequence; the Anthropic
// API takes them as a separate parameter.
func toAnthropicMessages(turns []llm.Turn) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var messages []anthropic.MessageParam
	var system []anthropic.TextBlockParam
	for _, turn := range turns {
		switch turn.Role {
		case llm.TurnRoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: turn.Content})
		case llm.TurnRoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		}
	}
	return messages, system
}

func toAnthropicTools(tools []llm.ToolSpec) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Properties: tool.Parameters["properties"],
		}
		if required := stringSlice(tool.Parameters["required"]); len(required) > 0 {
			schema.Required = required
		}
		if defs, ok := tool.Parameters["$defs"]; ok {
			schema.ExtraFields = map[string]any{"$defs": defs}
		}

		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" && param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Description)
		}
		result[i] = param
	}
	return result
}

func stringSlice(v any) []string {
	switch typed := v.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
