package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"moopoint/chat-api/internal/domain/llm"
)

// OpenAI streams chat completions through the official OpenAI SDK.
type OpenAI struct {
	baseURL string
}

// NewOpenAI builds the OpenAI adapter. An empty baseURL uses the SDK default.
func NewOpenAI(baseURL string) *OpenAI {
	return &OpenAI{baseURL: baseURL}
}

// Name implements llm.Adapter.
func (a *OpenAI) Name() string {
	return "openai"
}

// StreamCompletion implements llm.Adapter. The client is rebuilt per request
// because credentials are per user, not per process.
func (a *OpenAI) StreamCompletion(ctx context.Context, req llm.Request) (llm.Stream, error) {
	opts := []option.RequestOption{option.WithAPIKey(req.Credential)}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}

	inner := client.Chat.Completions.NewStreaming(ctx, params)
	return &openaiStream{inner: inner}, nil
}

type openaiStream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	pending []llm.Chunk
}

func (s *openaiStream) Recv() (*llm.Chunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return &chunk, nil
		}

		if !s.inner.Next() {
			if err := s.inner.Err(); err != nil {
				return nil, mapOpenAIError(err)
			}
			return nil, io.EOF
		}

		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			s.pending = append(s.pending, llm.Chunk{Text: delta.Content})
		}
		for _, call := range delta.ToolCalls {
			// A chunk with an ID opens a new call; fragments without one
			// continue the current call.
			out := llm.Chunk{
				CallStart: call.ID != "",
				CallID:    call.ID,
				ToolName:  call.Function.Name,
				ArgsDelta: call.Function.Arguments,
			}
			if out.CallStart || out.ToolName != "" || out.ArgsDelta != "" {
				s.pending = append(s.pending, out)
			}
		}
	}
}

func (s *openaiStream) Close() error {
	return s.inner.Close()
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
		return fmt.Errorf("%w: %v", llm.ErrAuth, err)
	}
	return err
}

func toOpenAIMessages(turns []llm.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case llm.TurnRoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case llm.TurnRoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}
	return messages
}

func toOpenAITools(tools []llm.ToolSpec) []openai.ChatCompletionToolUnionParam {
	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		result[i] = openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Parameters),
			},
		)
	}
	return result
}
