// Package gemini calls the Generative Language REST API (generateContent).
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Provider implements models.ModelProvider using Gemini.
type Provider struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &Provider{
		client:  &http.Client{Timeout: 120 * time.Second},
		apiKey:  cfg.APIKey,
		baseURL: base,
	}
}

func (p *Provider) Name() string { return "gemini" }

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
	Tools             []tool    `json:"tools,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate runs one generateContent round trip.
func (p *Provider) Generate(ctx context.Context, req models.GenerateRequest) (models.ModelResponse, error) {
	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.ModelResponse{}, fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		pe := &models.ProviderError{
			Provider:   "gemini",
			Model:      req.Model,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
			pe.Message = er.Error.Message
			pe.Status = er.Error.Status
		}
		return models.ModelResponse{}, pe
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.ModelResponse{}, fmt.Errorf("gemini: decode response: %w: %v", models.ErrInvalidResponse, err)
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback.BlockReason != "" {
			return models.ModelResponse{}, fmt.Errorf("gemini: prompt blocked: %s: %w", out.PromptFeedback.BlockReason, models.ErrInvalidResponse)
		}
		return models.ModelResponse{}, fmt.Errorf("gemini: response has no candidates: %w", models.ErrInvalidResponse)
	}

	result := models.ModelResponse{
		Usage: models.TokenCount{
			Input:  out.UsageMetadata.PromptTokenCount,
			Output: out.UsageMetadata.CandidatesTokenCount,
		},
	}
	var text strings.Builder
	for _, pt := range out.Candidates[0].Content.Parts {
		if pt.FunctionCall != nil {
			args := pt.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			result.ToolCalls = append(result.ToolCalls, models.ToolCall{Name: pt.FunctionCall.Name, Args: args})
			continue
		}
		text.WriteString(pt.Text)
	}
	result.Text = text.String()
	return result, nil
}

func buildRequest(req models.GenerateRequest) generateRequest {
	var out generateRequest
	if req.System != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		switch {
		case m.ToolCall != nil:
			out.Contents = append(out.Contents, content{
				Role:  "model",
				Parts: []part{{FunctionCall: &functionCall{Name: m.ToolCall.Name, Args: m.ToolCall.Args}}},
			})
		case m.ToolResult != nil:
			out.Contents = append(out.Contents, content{
				Role:  "user",
				Parts: []part{{FunctionResponse: &functionResponse{Name: m.ToolResult.Name, Response: m.ToolResult.Content}}},
			})
		case m.Role == models.RoleModel:
			out.Contents = append(out.Contents, content{Role: "model", Parts: []part{{Text: m.Text}}})
		default:
			out.Contents = append(out.Contents, content{Role: "user", Parts: []part{{Text: m.Text}}})
		}
	}
	if len(req.Tools) > 0 {
		decls := make([]functionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.JSONSchema(),
			})
		}
		out.Tools = []tool{{FunctionDeclarations: decls}}
	}
	return out
}

var _ models.ModelProvider = (*Provider)(nil)
