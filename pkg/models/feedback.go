package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RatingPositive = "positive"
	RatingNegative = "negative"
)

// Feedback is a visitor's rating of one bot reply.
type Feedback struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	TenantID    string    `db:"tenant_id"    json:"tenant_id"`
	Rating      string    `db:"rating"       json:"rating"`
	UserMessage string    `db:"user_message" json:"user_message"`
	BotResponse string    `db:"bot_response" json:"bot_response"`
	Comment     string    `db:"comment"      json:"comment,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// FeedbackStats summarizes the most recent ratings for a tenant.
type FeedbackStats struct {
	Total    int `json:"total"`
	Negative int `json:"negative"`
}

// NegativeRatio is Negative/Total, or zero when nothing was rated.
func (s FeedbackStats) NegativeRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Negative) / float64(s.Total)
}
