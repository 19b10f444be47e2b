// Package security classifies inbound chat messages into threats and scrubs
// outbound replies of contact details and links that do not belong to the tenant.
package security

import (
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Threats is the result of classifying one message.
type Threats []models.Threat

// Blocking reports whether any threat is HIGH or CRITICAL.
func (t Threats) Blocking() bool {
	return t.Max() >= models.SeverityHigh
}

// Max returns the highest severity present, or zero when empty.
func (t Threats) Max() models.Severity {
	var max models.Severity
	for _, th := range t {
		if th.Severity > max {
			max = th.Severity
		}
	}
	return max
}

// Has reports whether a threat of the given kind was found.
func (t Threats) Has(kind models.ThreatKind) bool {
	for _, th := range t {
		if th.Kind == kind {
			return true
		}
	}
	return false
}

// Screen evaluates an ordered rule set against messages. It is safe for concurrent use.
type Screen struct {
	rules []Rule
}

// NewScreen builds a screen over rules. With no rules it uses DefaultRules.
func NewScreen(rules ...Rule) *Screen {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Screen{rules: rules}
}

// Rules returns the names of the active rules in evaluation order.
func (s *Screen) Rules() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}

// Classify returns at most one threat per kind, keeping the most severe match.
// Kinds are reported in the order their first rule appears.
func (s *Screen) Classify(tenantDomain, message string) Threats {
	in := Input{Message: message, TenantDomain: models.TenantDomain(tenantDomain)}

	var out Threats
	index := make(map[models.ThreatKind]int)
	for _, r := range s.rules {
		if !r.Test(in) {
			continue
		}
		if i, ok := index[r.Kind]; ok {
			if r.Severity > out[i].Severity {
				out[i].Severity = r.Severity
				out[i].Rule = r.Name
			}
			continue
		}
		index[r.Kind] = len(out)
		out = append(out, models.Threat{Kind: r.Kind, Severity: r.Severity, Rule: r.Name})
	}
	return out
}
