package ai

import (
	"fmt"

	"github.com/kiranshivaraju/propchat/internal/ai/gemini"
	"github.com/kiranshivaraju/propchat/internal/ai/mock"
	"github.com/kiranshivaraju/propchat/internal/ai/openai"
	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// NewProvider constructs the appropriate model provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.ModelProvider, error) {
	switch cfg.Provider {
	case "gemini":
		return gemini.NewProvider(cfg.Gemini), nil
	case "openai", "ollama", "vllm":
		return openai.NewProvider(cfg.Provider, cfg.OpenAI), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of gemini, openai, ollama, vllm, mock", cfg.Provider)
	}
}
