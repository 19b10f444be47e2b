package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kiranshivaraju/propchat/pkg/models"
)

// MockProvider satisfies models.ModelProvider for testing and local demos.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (models.ModelResponse, error)

	mu       sync.Mutex
	requests []models.GenerateRequest
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, req models.GenerateRequest) (models.ModelResponse, error) {
	m.mu.Lock()
	req.Messages = append([]models.Message(nil), req.Messages...)
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return models.ModelResponse{}, nil
}

// Requests returns every request received so far.
func (m *MockProvider) Requests() []models.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.GenerateRequest(nil), m.requests...)
}

// Models returns the model named by each request, in order.
func (m *MockProvider) Models() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.Model
	}
	return out
}

// NewMockProvider returns a MockProvider that echoes the last user message.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.GenerateRequest) (models.ModelResponse, error) {
			last := lastUserText(req.Messages)
			return models.ModelResponse{
				Text:  "Mock reply: " + last,
				Usage: models.TokenCount{Input: estimateTokens(req), Output: len(strings.Fields(last)) + 2},
			}, nil
		},
	}
}

// Step is one scripted provider answer.
type Step struct {
	Response models.ModelResponse
	Err      error
}

// Text is a Step answering with plain text.
func Text(s string) Step {
	return Step{Response: models.ModelResponse{Text: s, Usage: models.TokenCount{Input: 10, Output: 5}}}
}

// Call is a Step asking for one tool.
func Call(name string, args map[string]any) Step {
	return Step{Response: models.ModelResponse{
		ToolCalls: []models.ToolCall{{ID: "call_" + name, Name: name, Args: args}},
		Usage:     models.TokenCount{Input: 10, Output: 5},
	}}
}

// Fail is a Step returning err.
func Fail(err error) Step {
	return Step{Err: err}
}

// NewScriptedProvider answers with steps in order and errors once they run out.
func NewScriptedProvider(steps ...Step) *MockProvider {
	var (
		mu   sync.Mutex
		next int
	)
	return &MockProvider{
		Name_: "mock-scripted",
		GenerateFunc: func(_ context.Context, req models.GenerateRequest) (models.ModelResponse, error) {
			mu.Lock()
			defer mu.Unlock()
			if next >= len(steps) {
				return models.ModelResponse{}, fmt.Errorf("mock: script exhausted after %d calls", next)
			}
			s := steps[next]
			next++
			return s.Response, s.Err
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.ModelResponse, error) {
			return models.ModelResponse{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.GenerateRequest) (models.ModelResponse, error) {
			<-ctx.Done()
			return models.ModelResponse{}, ctx.Err()
		},
	}
}

func lastUserText(msgs []models.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleUser && msgs[i].Text != "" {
			return msgs[i].Text
		}
	}
	return ""
}

func estimateTokens(req models.GenerateRequest) int {
	n := len(strings.Fields(req.System))
	for _, m := range req.Messages {
		n += len(strings.Fields(m.Text))
	}
	return n
}

// Compile-time check that MockProvider implements ModelProvider.
var _ models.ModelProvider = (*MockProvider)(nil)
