package models

import (
	"strings"
	"time"
)

// Plan is a tenant's subscription tier. Each plan maps to a monthly token ceiling.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Tenant is one agent or office. The ID is the domain the chatbot is embedded on.
// Tenants are never hard-deleted, only deactivated.
type Tenant struct {
	ID         string    `db:"id"          json:"id"`
	Name       string    `db:"name"        json:"name"`
	AgentName  string    `db:"agent_name"  json:"agent_name,omitempty"`
	AgentEmail string    `db:"agent_email" json:"agent_email,omitempty"`
	Plan       Plan      `db:"plan"        json:"plan"`
	Active     bool      `db:"active"      json:"active"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"  json:"updated_at"`
}

// Domain returns the host the tenant owns, used to tell own links from foreign ones.
func (t Tenant) Domain() string {
	return TenantDomain(t.ID)
}

// TenantDomain normalizes a tenant identifier into a bare lowercase host.
func TenantDomain(id string) string {
	d := strings.ToLower(strings.TrimSpace(id))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/:"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimPrefix(d, "www.")
}

// OfficeHierarchy places a personal tenant under its office (level 2) and
// national (level 3) catalogs.
type OfficeHierarchy struct {
	TenantID       string    `db:"tenant_id"       json:"tenant_id"`
	OfficeTenant   string    `db:"office_tenant"   json:"office_tenant,omitempty"`
	NationalTenant string    `db:"national_tenant" json:"national_tenant,omitempty"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// CoBrokerageConfig gates whether a tenant may search other tenants' catalogs.
type CoBrokerageConfig struct {
	TenantID      string    `db:"tenant_id"      json:"tenant_id"`
	Enabled       bool      `db:"enabled"        json:"enabled"`
	SharedTenants []string  `db:"shared_tenants" json:"shared_tenants"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}

// Shares reports whether tenant id is in the shared set. An empty set shares with everyone.
func (c CoBrokerageConfig) Shares(id string) bool {
	if len(c.SharedTenants) == 0 {
		return true
	}
	for _, t := range c.SharedTenants {
		if strings.EqualFold(t, id) {
			return true
		}
	}
	return false
}
