package models

import (
	"time"

	"github.com/google/uuid"
)

// Visitor is a lead captured during a conversation.
type Visitor struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	TenantID      string    `db:"tenant_id"      json:"tenant_id"`
	Name          string    `db:"name"           json:"name"`
	Email         string    `db:"email"          json:"email"`
	Phone         string    `db:"phone"          json:"phone"`
	PropertyID    string    `db:"property_id"    json:"property_id,omitempty"`
	PreferredDate string    `db:"preferred_date" json:"preferred_date,omitempty"`
	PreferredTime string    `db:"preferred_time" json:"preferred_time,omitempty"`
	Message       string    `db:"message"        json:"message,omitempty"`
	Source        string    `db:"source"         json:"source"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}

// Email is an outbound notification handed to the email sender.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}
