// Package ai fronts the generative model providers with an ordered fallback
// chain. Callers talk to a Gateway; providers are never called directly.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/propchat/internal/config"
	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Scope decides where a session's starting model index comes from.
type Scope string

const (
	// ScopeRequest starts every session at the most preferred model.
	ScopeRequest Scope = "request"
	// ScopeTenant remembers the last working index per tenant.
	ScopeTenant Scope = "tenant"
	// ScopeGlobal shares one index across the process.
	ScopeGlobal Scope = "global"
)

// UpgradeThreshold is the negative-feedback ratio above which ConsiderUpgrade
// moves a scope one model up the chain.
const UpgradeThreshold = 0.4

// Session is one logical conversation with the model. ModelIndex travels with
// the session, so a fallback taken mid-turn sticks for the rest of the turn.
type Session struct {
	TenantID   string
	System     string
	Tools      []models.ToolSchema
	History    []models.Message
	ModelIndex int
	Usage      models.TokenCount
}

// Gateway runs provider calls down an ordered model chain.
type Gateway struct {
	provider models.ModelProvider
	chain    []string
	scope    Scope
	timeout  time.Duration
	window   int
	logger   *slog.Logger

	mu        sync.Mutex
	tenantIdx map[string]int
	globalIdx int
}

// NewGateway creates a Gateway over provider using the chain and scope from cfg.
func NewGateway(provider models.ModelProvider, cfg config.AIConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	scope := Scope(cfg.Scope)
	if scope == "" {
		scope = ScopeRequest
	}
	return &Gateway{
		provider:  provider,
		chain:     append([]string(nil), cfg.Chain...),
		scope:     scope,
		timeout:   cfg.InferenceTimeout,
		window:    cfg.UpgradeWindow,
		logger:    logger,
		tenantIdx: make(map[string]int),
	}
}

// Chain returns the configured models, most preferred first.
func (g *Gateway) Chain() []string {
	return append([]string(nil), g.chain...)
}

// UpgradeWindow is how many recent ratings ConsiderUpgrade expects.
func (g *Gateway) UpgradeWindow() int { return g.window }

// NewSession starts a session at the scope's current model.
func (g *Gateway) NewSession(tenantID, system string, tools []models.ToolSchema) *Session {
	return &Session{
		TenantID:   tenantID,
		System:     system,
		Tools:      tools,
		ModelIndex: g.startIndex(tenantID),
	}
}

// Invoke sends a user message and returns the model's reply.
func (g *Gateway) Invoke(ctx context.Context, s *Session, message string) (models.ModelResponse, error) {
	s.History = append(s.History, models.Message{Role: models.RoleUser, Text: message})
	return g.generate(ctx, s)
}

// Continue feeds a tool result back and returns the model's follow-up.
func (g *Gateway) Continue(ctx context.Context, s *Session, result models.ToolResult) (models.ModelResponse, error) {
	s.History = append(s.History, models.Message{Role: models.RoleFunction, ToolResult: &result})
	return g.generate(ctx, s)
}

func (g *Gateway) generate(ctx context.Context, s *Session) (models.ModelResponse, error) {
	var lastErr error
	for s.ModelIndex < len(g.chain) {
		model := g.chain[s.ModelIndex]

		resp, err := g.call(ctx, s, model)
		if err == nil {
			metrics.ModelCallsTotal.WithLabelValues(g.provider.Name(), model, "ok").Inc()
			metrics.ModelTokensTotal.WithLabelValues("input").Add(float64(resp.Usage.Input))
			metrics.ModelTokensTotal.WithLabelValues("output").Add(float64(resp.Usage.Output))

			resp.Model = model
			s.Usage.Input += resp.Usage.Input
			s.Usage.Output += resp.Usage.Output
			s.History = append(s.History, modelTurn(resp))
			g.remember(s.TenantID, s.ModelIndex)
			return resp, nil
		}

		err = classify(err)
		metrics.ModelCallsTotal.WithLabelValues(g.provider.Name(), model, "error").Inc()
		if !Retryable(err) {
			g.logger.Error("model call failed",
				"tenant", s.TenantID,
				"model", model,
				"error", err,
			)
			return models.ModelResponse{}, err
		}

		lastErr = err
		s.ModelIndex++
		next := "none"
		if s.ModelIndex < len(g.chain) {
			next = g.chain[s.ModelIndex]
		}
		metrics.ModelFallbacksTotal.WithLabelValues(model, next).Inc()
		g.logger.Warn("model unavailable, falling back",
			"tenant", s.TenantID,
			"model", model,
			"next", next,
			"error", err,
		)
	}

	g.reset(s.TenantID)
	if lastErr == nil {
		return models.ModelResponse{}, ErrModelUnavailable
	}
	return models.ModelResponse{}, fmt.Errorf("%w: last error: %v", ErrModelUnavailable, lastErr)
}

func (g *Gateway) call(ctx context.Context, s *Session, model string) (models.ModelResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.provider.Generate(ctx, models.GenerateRequest{
		Model:    model,
		System:   s.System,
		Messages: s.History,
		Tools:    s.Tools,
	})
}

func modelTurn(resp models.ModelResponse) models.Message {
	if resp.HasToolCall() {
		call := resp.ToolCalls[0]
		return models.Message{Role: models.RoleModel, ToolCall: &call}
	}
	return models.Message{Role: models.RoleModel, Text: resp.Text}
}

// ConsiderUpgrade steps the scope one model better when the negative share of
// stats exceeds UpgradeThreshold. It reports whether the index moved.
func (g *Gateway) ConsiderUpgrade(tenantID string, stats models.FeedbackStats) bool {
	if stats.Total == 0 || stats.NegativeRatio() <= UpgradeThreshold {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var from int
	switch g.scope {
	case ScopeTenant:
		from = g.tenantIdx[tenantID]
		if from == 0 {
			return false
		}
		g.tenantIdx[tenantID] = from - 1
	case ScopeGlobal:
		from = g.globalIdx
		if from == 0 {
			return false
		}
		g.globalIdx = from - 1
	default:
		return false
	}

	g.logger.Info("upgrading model after negative feedback",
		"tenant", tenantID,
		"scope", string(g.scope),
		"from", g.chain[from],
		"to", g.chain[from-1],
		"negative_ratio", stats.NegativeRatio(),
	)
	return true
}

// ModelFor returns the model a new session for tenantID would start on.
func (g *Gateway) ModelFor(tenantID string) string {
	return g.chain[g.startIndex(tenantID)]
}

func (g *Gateway) startIndex(tenantID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.scope {
	case ScopeTenant:
		return g.tenantIdx[tenantID]
	case ScopeGlobal:
		return g.globalIdx
	}
	return 0
}

func (g *Gateway) remember(tenantID string, idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.scope {
	case ScopeTenant:
		g.tenantIdx[tenantID] = idx
	case ScopeGlobal:
		g.globalIdx = idx
	}
}

// reset returns an exhausted scope to the top of the chain so the next
// session tries the preferred model again.
func (g *Gateway) reset(tenantID string) {
	g.remember(tenantID, 0)
}
