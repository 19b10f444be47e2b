// Package openai talks to the chat completions API. Ollama and vLLM expose the
// same API, so this provider serves all three.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Provider implements models.ModelProvider over an OpenAI-compatible endpoint.
type Provider struct {
	name   string
	client *http.Client
	apiKey string
	apiURL string
}

// NewProvider creates a provider reporting itself as name ("openai", "ollama", "vllm").
func NewProvider(name string, cfg config.OpenAIConfig) *Provider {
	apiURL := strings.TrimRight(cfg.BaseURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	return &Provider{
		name:   name,
		client: &http.Client{Timeout: 120 * time.Second},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
	}
}

func (p *Provider) Name() string { return p.name }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string    `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate runs one non-streaming chat completion.
func (p *Provider) Generate(ctx context.Context, req models.GenerateRequest) (models.ModelResponse, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("%s: create request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("%s: request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("%s: read response: %w", p.name, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return models.ModelResponse{}, p.providerError(req.Model, resp.StatusCode, raw)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.ModelResponse{}, fmt.Errorf("%s: decode response: %w: %v", p.name, models.ErrInvalidResponse, err)
	}
	if len(out.Choices) == 0 {
		return models.ModelResponse{}, fmt.Errorf("%s: response has no choices: %w", p.name, models.ErrInvalidResponse)
	}

	msg := out.Choices[0].Message
	result := models.ModelResponse{
		Usage: models.TokenCount{Input: out.Usage.PromptTokens, Output: out.Usage.CompletionTokens},
	}
	if msg.Content != nil {
		result.Text = *msg.Content
	}
	for i, tc := range msg.ToolCalls {
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return models.ModelResponse{}, fmt.Errorf("%s: decode tool arguments for %s: %w", p.name, tc.Function.Name, err)
			}
		}
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		result.ToolCalls = append(result.ToolCalls, models.ToolCall{ID: id, Name: tc.Function.Name, Args: args})
	}
	return result, nil
}

func (p *Provider) providerError(model string, status int, raw []byte) error {
	pe := &models.ProviderError{
		Provider:   p.name,
		Model:      model,
		StatusCode: status,
		Message:    strings.TrimSpace(string(raw)),
	}
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		pe.Message = er.Error.Message
		if code, ok := er.Error.Code.(string); ok {
			pe.Status = code
		}
	}
	return pe
}

func buildRequest(req models.GenerateRequest) chatRequest {
	out := chatRequest{Model: req.Model}
	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: ptr(req.System)})
	}
	for _, m := range req.Messages {
		switch {
		case m.ToolCall != nil:
			args, _ := json.Marshal(m.ToolCall.Args)
			out.Messages = append(out.Messages, chatMessage{
				Role: "assistant",
				ToolCalls: []toolCall{{
					ID:       m.ToolCall.ID,
					Type:     "function",
					Function: functionCall{Name: m.ToolCall.Name, Arguments: string(args)},
				}},
			})
		case m.ToolResult != nil:
			content, _ := json.Marshal(m.ToolResult.Content)
			out.Messages = append(out.Messages, chatMessage{
				Role:       "tool",
				ToolCallID: m.ToolResult.CallID,
				Name:       m.ToolResult.Name,
				Content:    ptr(string(content)),
			})
		case m.Role == models.RoleModel:
			out.Messages = append(out.Messages, chatMessage{Role: "assistant", Content: ptr(m.Text)})
		default:
			out.Messages = append(out.Messages, chatMessage{Role: "user", Content: ptr(m.Text)})
		}
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: toolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.JSONSchema(),
			},
		})
	}
	return out
}

func ptr(s string) *string { return &s }

var _ models.ModelProvider = (*Provider)(nil)
