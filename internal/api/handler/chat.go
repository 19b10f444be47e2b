package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/propchat/internal/ai"
	mw "github.com/kiranshivaraju/propchat/internal/api/middleware"
	"github.com/kiranshivaraju/propchat/internal/api/response"
	"github.com/kiranshivaraju/propchat/internal/chat"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Chatter runs chat turns.
type Chatter interface {
	Handle(ctx context.Context, req chat.Request) (*chat.Reply, error)
	FailureText(req chat.Request, err error) string
}

// historyParts accepts either a plain string or a list of {"text": ...}
// parts, the shape chat widgets resend history in.
type historyParts string

func (p *historyParts) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = historyParts(s)
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, raw := range parts {
		var text string
		if json.Unmarshal(raw, &text) != nil {
			var part struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &part); err != nil {
				return err
			}
			text = part.Text
		}
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(text)
	}
	*p = historyParts(buf.String())
	return nil
}

type chatRequest struct {
	Message string `json:"message"`
	History []struct {
		Role  string       `json:"role"`
		Parts historyParts `json:"parts"`
	} `json:"history"`
	CurrentURL        string `json:"currentUrl"`
	CurrentPropertyID string `json:"currentPropertyId"`
}

type chatResponse struct {
	Text         string            `json:"text"`
	Properties   []models.Property `json:"properties,omitempty"`
	Language     string            `json:"language"`
	Model        string            `json:"model"`
	UsageWarning bool              `json:"usage_warning,omitempty"`
}

// NewChatHandler returns an http.HandlerFunc for POST /api/v1/chat.
func NewChatHandler(svc Chatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "TENANT_REQUIRED", "Request does not identify a tenant", nil)
			return
		}

		var body chatRequest
		r.Body = http.MaxBytesReader(w, r.Body, mw.MaxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			req := chat.Request{TenantID: tenantID}
			response.ErrorText(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body",
				svc.FailureText(req, chat.ErrValidation), nil)
			return
		}

		req := chat.Request{
			TenantID:          tenantID,
			Message:           body.Message,
			CurrentURL:        body.CurrentURL,
			CurrentPropertyID: body.CurrentPropertyID,
		}
		for _, h := range body.History {
			req.History = append(req.History, chat.Turn{Role: h.Role, Text: string(h.Parts)})
		}

		reply, err := svc.Handle(r.Context(), req)
		if err != nil {
			writeChatError(w, tenantID, err, svc.FailureText(req, err))
			return
		}

		response.JSON(w, chatResponse{
			Text:         reply.Text,
			Properties:   reply.Properties,
			Language:     reply.Language,
			Model:        reply.Model,
			UsageWarning: reply.UsageWarning,
		})
	}
}

func writeChatError(w http.ResponseWriter, tenantID string, err error, text string) {
	var blocked *chat.BlockedError
	var quota *chat.QuotaError
	switch {
	case errors.Is(err, chat.ErrValidation):
		response.ErrorText(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), text, nil)
	case errors.As(err, &blocked):
		response.ErrorText(w, http.StatusBadRequest, "MESSAGE_BLOCKED",
			"Message rejected by the security screen", text, nil)
	case errors.As(err, &quota):
		response.ErrorText(w, http.StatusTooManyRequests, "QUOTA_EXCEEDED", "Token quota exceeded", text,
			map[string]any{
				"used":         quota.Status.Used,
				"limit":        quota.Status.Limit,
				"percentage":   quota.Status.Percentage,
				"plan":         quota.Status.Plan,
				"window_start": quota.Status.WindowStart,
			})
	case errors.Is(err, ai.ErrModelUnavailable):
		response.ErrorText(w, http.StatusServiceUnavailable, "MODEL_UNAVAILABLE",
			"No model is currently available", text, nil)
	default:
		slog.Error("chat turn failed", "tenant", tenantID, "error", err)
		response.ErrorText(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", text, nil)
	}
}
