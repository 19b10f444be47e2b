package security

import (
	"fmt"
	"os"
	"regexp"

	"github.com/kiranshivaraju/propchat/pkg/models"
	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk format for tuning the screen without a redeploy.
//
//	severities:
//	  COMPETITOR_LINK: LOW
//	disabled: [foreign_link]
//	rules:
//	  - name: override_safety
//	    kind: PROMPT_INJECTION
//	    severity: HIGH
//	    patterns: ["override (the )?safety"]
type RuleFile struct {
	Severities map[models.ThreatKind]string `yaml:"severities"`
	Disabled   []string                     `yaml:"disabled"`
	Rules      []RuleSpec                   `yaml:"rules"`
}

// RuleSpec is one extra pattern rule declared in a RuleFile.
type RuleSpec struct {
	Name     string            `yaml:"name"`
	Kind     models.ThreatKind `yaml:"kind"`
	Severity string            `yaml:"severity"`
	Patterns []string          `yaml:"patterns"`
}

var knownKinds = map[models.ThreatKind]bool{
	models.ThreatPromptInjection:      true,
	models.ThreatPIIExtraction:        true,
	models.ThreatSystemQuery:          true,
	models.ThreatCompetitorLink:       true,
	models.ThreatFeedbackManipulation: true,
	models.ThreatCommandInjection:     true,
}

// LoadRules reads a rule file and applies it on top of DefaultRules.
// An empty path returns the defaults unchanged.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var f RuleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	return f.Apply(DefaultRules())
}

// Apply disables, re-grades and extends base according to the file.
func (f RuleFile) Apply(base []Rule) ([]Rule, error) {
	overrides := make(map[models.ThreatKind]models.Severity, len(f.Severities))
	for kind, name := range f.Severities {
		if !knownKinds[kind] {
			return nil, fmt.Errorf("severities: unknown threat kind %q", kind)
		}
		sev, err := models.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("severities[%s]: %w", kind, err)
		}
		overrides[kind] = sev
	}

	disabled := make(map[string]bool, len(f.Disabled))
	for _, n := range f.Disabled {
		disabled[n] = true
	}

	var out []Rule
	for _, r := range base {
		if disabled[r.Name] {
			continue
		}
		if sev, ok := overrides[r.Kind]; ok {
			r.Severity = sev
		}
		out = append(out, r)
	}

	for i, rs := range f.Rules {
		if rs.Name == "" {
			return nil, fmt.Errorf("rules[%d]: name is required", i)
		}
		if !knownKinds[rs.Kind] {
			return nil, fmt.Errorf("rules[%d]: unknown threat kind %q", i, rs.Kind)
		}
		sev, err := models.ParseSeverity(rs.Severity)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if len(rs.Patterns) == 0 {
			return nil, fmt.Errorf("rules[%d]: at least one pattern is required", i)
		}
		for _, p := range rs.Patterns {
			if _, err := regexp.Compile(`(?i)` + p); err != nil {
				return nil, fmt.Errorf("rules[%d]: invalid pattern %q: %w", i, p, err)
			}
		}
		if disabled[rs.Name] {
			continue
		}
		if o, ok := overrides[rs.Kind]; ok {
			sev = o
		}
		out = append(out, PatternRule(rs.Name, rs.Kind, sev, rs.Patterns...))
	}
	return out, nil
}
