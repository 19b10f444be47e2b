package models

import "time"

// TokenUsage is a tenant's accumulated consumption for the current quota window.
// Counters reset to zero when the window rolls over.
type TokenUsage struct {
	TenantID     string    `db:"tenant_id"     json:"tenant_id"`
	InputTokens  int64     `db:"input_tokens"  json:"input_tokens"`
	OutputTokens int64     `db:"output_tokens" json:"output_tokens"`
	RequestCount int64     `db:"request_count" json:"request_count"`
	Plan         Plan      `db:"plan"          json:"plan"`
	WindowStart  time.Time `db:"window_start"  json:"window_start"`
}

// Total is the sum that counts against the plan ceiling.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}
