package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/propchat/internal/api/middleware"
	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

const maxFeedbackRunes = 4000

// FeedbackStore persists ratings.
type FeedbackStore interface {
	EnsureTenant(ctx context.Context, id string) (*models.Tenant, error)
	CreateFeedback(ctx context.Context, f *models.Feedback) error
	FeedbackStats(ctx context.Context, tenantID string, window int) (models.FeedbackStats, error)
}

// ModelUpgrader moves a tenant to a better model when ratings sour.
type ModelUpgrader interface {
	UpgradeWindow() int
	ConsiderUpgrade(tenantID string, stats models.FeedbackStats) bool
}

// NewFeedbackHandler returns an http.HandlerFunc for POST /api/v1/feedback.
func NewFeedbackHandler(s FeedbackStore, upgrader ModelUpgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "TENANT_REQUIRED", "Request does not identify a tenant", nil)
			return
		}

		var req struct {
			Rating      string `json:"rating"`
			UserMessage string `json:"userMessage"`
			BotResponse string `json:"botResponse"`
			Comment     string `json:"comment"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, mw.MaxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		rating := strings.ToLower(strings.TrimSpace(req.Rating))
		if rating != models.RatingPositive && rating != models.RatingNegative {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "rating must be positive or negative", nil)
			return
		}
		if strings.TrimSpace(req.BotResponse) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "botResponse is required", nil)
			return
		}

		tenant, err := s.EnsureTenant(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record feedback", nil)
			return
		}

		fb := &models.Feedback{
			ID:          uuid.New(),
			TenantID:    tenant.ID,
			Rating:      rating,
			UserMessage: clip(req.UserMessage),
			BotResponse: clip(req.BotResponse),
			Comment:     clip(req.Comment),
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.CreateFeedback(r.Context(), fb); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record feedback", nil)
			return
		}

		upgraded := false
		stats, err := s.FeedbackStats(r.Context(), tenant.ID, upgrader.UpgradeWindow())
		if err != nil {
			slog.Warn("feedback stats unavailable", "tenant", tenant.ID, "error", err)
		} else {
			upgraded = upgrader.ConsiderUpgrade(tenant.ID, stats)
		}

		response.Created(w, map[string]any{
			"id":       fb.ID.String(),
			"rating":   fb.Rating,
			"upgraded": upgraded,
		})
	}
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxFeedbackRunes {
		return s
	}
	return string([]rune(s)[:maxFeedbackRunes])
}
