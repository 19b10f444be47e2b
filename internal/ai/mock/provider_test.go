package mock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kiranshivaraju/propchat/internal/ai"
	"github.com/kiranshivaraju/propchat/internal/ai/mock"
	"github.com/kiranshivaraju/propchat/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest(model string) models.GenerateRequest {
	return models.GenerateRequest{
		Model:  model,
		System: "You are a property assistant",
		Messages: []models.Message{
			{Role: models.RoleUser, Text: "rumah di jaksel"},
			{Role: models.RoleModel, Text: "Budget berapa?"},
			{Role: models.RoleUser, Text: "di bawah 2 miliar"},
		},
	}
}

// --- NewMockProvider ---

func TestNewMockProvider_Name(t *testing.T) {
	p := mock.NewMockProvider()
	assert.Equal(t, "mock", p.Name())
}

func TestNewMockProvider_EchoesLastUserMessage(t *testing.T) {
	p := mock.NewMockProvider()
	resp, err := p.Generate(context.Background(), sampleRequest("mock-large"))

	require.NoError(t, err)
	assert.Equal(t, "Mock reply: di bawah 2 miliar", resp.Text)
	assert.False(t, resp.HasToolCall())
	assert.Positive(t, resp.Usage.Input)
	assert.Positive(t, resp.Usage.Output)
}

func TestMockProvider_RecordsRequests(t *testing.T) {
	p := mock.NewMockProvider()
	_, _ = p.Generate(context.Background(), sampleRequest("mock-large"))
	_, _ = p.Generate(context.Background(), sampleRequest("mock-small"))

	assert.Equal(t, []string{"mock-large", "mock-small"}, p.Models())
	require.Len(t, p.Requests(), 2)
	assert.Len(t, p.Requests()[0].Messages, 3)
}

// --- NewScriptedProvider ---

func TestNewScriptedProvider_StepsInOrder(t *testing.T) {
	p := mock.NewScriptedProvider(
		mock.Call("search_properties", map[string]any{"location": "Cilandak"}),
		mock.Fail(ai.ErrQuotaExhausted),
		mock.Text("Ada 1 rumah."),
	)
	ctx := context.Background()

	resp, err := p.Generate(ctx, sampleRequest("m"))
	require.NoError(t, err)
	require.True(t, resp.HasToolCall())
	assert.Equal(t, "search_properties", resp.ToolCalls[0].Name)
	assert.Equal(t, "Cilandak", resp.ToolCalls[0].Args["location"])

	_, err = p.Generate(ctx, sampleRequest("m"))
	assert.ErrorIs(t, err, ai.ErrQuotaExhausted)

	resp, err = p.Generate(ctx, sampleRequest("m"))
	require.NoError(t, err)
	assert.Equal(t, "Ada 1 rumah.", resp.Text)

	_, err = p.Generate(ctx, sampleRequest("m"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script exhausted")
}

// --- NewFailingProvider ---

func TestNewFailingProvider_CustomError(t *testing.T) {
	customErr := errors.New("custom AI error")
	p := mock.NewFailingProvider(customErr)

	_, err := p.Generate(context.Background(), sampleRequest("m"))
	assert.ErrorIs(t, err, customErr)
	assert.Equal(t, "mock-failing", p.Name())
}

// --- NewTimeoutProvider ---

func TestNewTimeoutProvider_Generate(t *testing.T) {
	p := mock.NewTimeoutProvider()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Generate(ctx, sampleRequest("m"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Zero-value MockProvider ---

func TestMockProvider_NilFunc(t *testing.T) {
	p := &mock.MockProvider{Name_: "bare"}

	resp, err := p.Generate(context.Background(), sampleRequest("m"))
	assert.NoError(t, err)
	assert.Equal(t, models.ModelResponse{}, resp)
}

// --- Interface compliance ---

func TestMockProvider_ImplementsModelProvider(t *testing.T) {
	var _ models.ModelProvider = mock.NewMockProvider()
	var _ models.ModelProvider = mock.NewFailingProvider(nil)
	var _ models.ModelProvider = mock.NewTimeoutProvider()
	var _ models.ModelProvider = mock.NewScriptedProvider()
}
