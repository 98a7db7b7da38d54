package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"moopoint/chat-api/internal/domain/llm"
)

// OpenAICompat streams chat completions from any endpoint speaking the
// OpenAI wire format. It covers self-hosted gateways and providers without a
// native SDK.
type OpenAICompat struct {
	name       string
	baseURL    string
	httpClient *resty.Client
}

// NewOpenAICompat builds an adapter for one OpenAI-compatible endpoint.
// The name becomes the provider discriminator.
func NewOpenAICompat(name, baseURL string) *OpenAICompat {
	return &OpenAICompat{
		name:    name,
		baseURL: baseURL,
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second),
	}
}

// Name implements llm.Adapter.
func (a *OpenAICompat) Name() string {
	return a.name
}

type compatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type compatTool struct {
	Type     string         `json:"type"`
	Function compatFunction `json:"function"`
}

type compatRequest struct {
	Model    string          `json:"model"`
	Messages []compatMessage `json:"messages"`
	Tools    []compatTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
}

type compatDelta struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamCompletion implements llm.Adapter.
func (a *OpenAICompat) StreamCompletion(ctx context.Context, req llm.Request) (llm.Stream, error) {
	payload := compatRequest{
		Model:  req.Model,
		Stream: true,
	}
	for _, turn := range req.Messages {
		payload.Messages = append(payload.Messages, compatMessage{Role: turn.Role, Content: turn.Content})
	}
	for _, tool := range req.Tools {
		payload.Tools = append(payload.Tools, compatTool{
			Type: "function",
			Function: compatFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}

	httpClient := &http.Client{Timeout: 120 * time.Second}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		detail, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d %s", llm.ErrAuth, resp.StatusCode, string(detail))
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("completion api error: %d %s", resp.StatusCode, string(detail))
	}

	return &compatStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// Models fetches the endpoint's model list.
func (a *OpenAICompat) Models(ctx context.Context, credential string) ([]string, error) {
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	request := a.httpClient.R().
		SetContext(ctx).
		SetResult(&result)
	if credential != "" {
		request.SetHeader("Authorization", "Bearer "+credential)
	}

	resp, err := request.Get("/v1/models")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("models api error: %s", resp.String())
	}

	models := make([]string, 0, len(result.Data))
	for _, m := range result.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// compatStream parses SSE lines off the response body.
type compatStream struct {
	resp    *http.Response
	reader  *bufio.Reader
	pending []llm.Chunk
}

func (s *compatStream) Recv() (*llm.Chunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return &chunk, nil
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil, io.EOF
		}

		var delta compatDelta
		if err := json.Unmarshal([]byte(data), &delta); err != nil {
			// Skip malformed chunks
			continue
		}
		if len(delta.Choices) == 0 {
			continue
		}

		choice := delta.Choices[0].Delta
		if choice.Content != "" {
			s.pending = append(s.pending, llm.Chunk{Text: choice.Content})
		}
		for _, call := range choice.ToolCalls {
			s.pending = append(s.pending, llm.Chunk{
				CallStart: call.ID != "",
				CallID:    call.ID,
				ToolName:  call.Function.Name,
				ArgsDelta: call.Function.Arguments,
			})
		}
	}
}

func (s *compatStream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
