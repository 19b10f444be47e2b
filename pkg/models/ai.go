// Package models contains shared data models used across the propchat codebase.
package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidResponse marks a 2xx model answer that carries nothing usable.
var ErrInvalidResponse = errors.New("ai provider returned invalid response")

// ModelProvider is the interface every generative model integration implements.
// Never call specific providers directly; always go through ai.Gateway.
type ModelProvider interface {
	// Generate runs one completion round against the named model.
	Generate(ctx context.Context, req GenerateRequest) (ModelResponse, error)
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string
}

// MessageRole identifies who authored a message in a model conversation.
type MessageRole string

const (
	RoleUser     MessageRole = "user"
	RoleModel    MessageRole = "model"
	RoleFunction MessageRole = "function"
)

// Message is one entry of the conversation sent to a provider. Exactly one of
// Text, ToolCall or ToolResult is set.
type Message struct {
	Role       MessageRole
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// ToolSchema declares a callable function to the model.
type ToolSchema struct {
	Name        string
	Description string
	Properties  map[string]ToolParam
	Required    []string
}

// ToolParam describes one argument of a tool.
type ToolParam struct {
	Type        string
	Description string
	Enum        []string
}

// JSONSchema renders the tool parameters as a JSON schema object.
func (t ToolSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(t.Properties))
	for name, p := range t.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(t.Required) > 0 {
		schema["required"] = t.Required
	}
	return schema
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult is the response fed back to the model after a tool ran.
type ToolResult struct {
	CallID  string         `json:"call_id,omitempty"`
	Name    string         `json:"name"`
	Content map[string]any `json:"content"`
}

// GenerateRequest is the input to one provider round trip.
type GenerateRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolSchema
}

// TokenCount is the usage reported by a provider for one round trip.
type TokenCount struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// ModelResponse is what a provider returned for one round trip.
type ModelResponse struct {
	Text      string
	ToolCalls []ToolCall
	Usage     TokenCount
	Model     string
}

// HasToolCall reports whether the model asked for a tool.
func (r ModelResponse) HasToolCall() bool {
	return len(r.ToolCalls) > 0
}

// ProviderError is a non-2xx answer from a model API. The gateway maps it onto
// its retryable sentinels.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int
	Status     string
	Message    string
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	if e.Status != "" {
		return fmt.Sprintf("%s: model %s: %d %s: %s", e.Provider, e.Model, e.StatusCode, e.Status, msg)
	}
	return fmt.Sprintf("%s: model %s: status %d: %s", e.Provider, e.Model, e.StatusCode, msg)
}
