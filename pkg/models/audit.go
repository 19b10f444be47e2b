package models

import (
	"fmt"
	"strings"
	"time"
)

// Audit log collections. Records are append-only.
const (
	CollectionSecurityIncidents  = "security_incidents"
	CollectionValidationWarnings = "validation_warnings"
	CollectionRedactions         = "sanitizer_redactions"
)

// ThreatKind is the fixed enumeration of message threats.
type ThreatKind string

const (
	ThreatPromptInjection      ThreatKind = "PROMPT_INJECTION"
	ThreatPIIExtraction        ThreatKind = "PII_EXTRACTION_ATTEMPT"
	ThreatSystemQuery          ThreatKind = "SYSTEM_QUERY_ATTEMPT"
	ThreatCompetitorLink       ThreatKind = "COMPETITOR_LINK"
	ThreatFeedbackManipulation ThreatKind = "FEEDBACK_MANIPULATION"
	ThreatCommandInjection     ThreatKind = "COMMAND_INJECTION"
)

// Severity orders threats. HIGH and above blocks the request.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseSeverity accepts the upper- or lower-case severity name.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Threat is one classification produced by the security screen.
type Threat struct {
	Kind     ThreatKind `json:"type"`
	Severity Severity   `json:"severity"`
	Rule     string     `json:"rule"`
}

// SecurityIncident is the audit record for a screened message.
type SecurityIncident struct {
	TenantID  string    `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Threats   []Threat  `json:"threats"`
	Blocked   bool      `json:"blocked"`
}

// WarningKind enumerates the fabricated-fact checks.
type WarningKind string

const (
	WarningCountMismatch       WarningKind = "COUNT_MISMATCH"
	WarningFakePrice           WarningKind = "FAKE_PRICE"
	WarningHallucinatedFeature WarningKind = "HALLUCINATED_FEATURE"
	WarningUnverifiedClaim     WarningKind = "UNVERIFIED_CLAIM"
	WarningNoToolUsage         WarningKind = "NO_TOOL_USAGE"
)

// ValidationWarning flags a fact in an outbound reply that tool data does not back.
type ValidationWarning struct {
	TenantID  string      `json:"tenant_id"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      WarningKind `json:"kind"`
	Evidence  []string    `json:"evidence"`
}

// Redaction counts what the sanitizer removed of one kind.
type Redaction struct {
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
	Summary string `json:"summary"`
}

// AuditRecord is the envelope persisted by the incident log.
type AuditRecord struct {
	Collection string    `json:"collection"`
	TenantID   string    `json:"tenant_id"`
	Payload    any       `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}
