package security

import (
	"regexp"

	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Input is what a rule inspects.
type Input struct {
	Message      string
	TenantDomain string
}

// Rule is one named predicate mapping a match to a threat kind and severity.
type Rule struct {
	Name     string
	Kind     models.ThreatKind
	Severity models.Severity
	Test     func(Input) bool
}

// PatternRule builds a rule that fires when any pattern matches the message.
func PatternRule(name string, kind models.ThreatKind, sev models.Severity, patterns ...string) Rule {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return Rule{
		Name:     name,
		Kind:     kind,
		Severity: sev,
		Test: func(in Input) bool {
			for _, re := range res {
				if re.MatchString(in.Message) {
					return true
				}
			}
			return false
		},
	}
}

// pairRule fires only when both a verb pattern and a noun pattern are present.
func pairRule(name string, kind models.ThreatKind, sev models.Severity, verbs, nouns string) Rule {
	v := regexp.MustCompile(`(?i)` + verbs)
	n := regexp.MustCompile(`(?i)` + nouns)
	return Rule{
		Name:     name,
		Kind:     kind,
		Severity: sev,
		Test: func(in Input) bool {
			return v.MatchString(in.Message) && n.MatchString(in.Message)
		},
	}
}

// DefaultRules is the built-in rule set, in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		PatternRule("role_override", models.ThreatPromptInjection, models.SeverityHigh,
			`\b(ignore|disregard|forget|override)\s+(all\s+)?(of\s+)?(your\s+|the\s+)?(previous|prior|above|earlier|system)?\s*(instructions?|prompts?|rules|directions)`,
			`\byou\s+are\s+now\s+(a|an|in)\b`,
			`\bpretend\s+(to\s+be|you\s+are)\b`,
			`\bfrom\s+now\s+on,?\s+you\b`,
			`\bnew\s+instructions?\s*:`,
			`\b(jailbreak|dan\s+mode|developer\s+mode)\b`,
			`\b(abaikan|lupakan|acuhkan)\s+(semua\s+)?(instruksi|perintah|aturan)`,
			`\bkamu\s+sekarang\s+adalah\b`,
		),
		PatternRule("system_prompt_probe", models.ThreatSystemQuery, models.SeverityHigh,
			`\b(system|initial|hidden|original)\s+(prompt|instructions?|message)\b`,
			`\b(show|reveal|print|repeat|display|tell\s+me)\s+(me\s+)?(your|the)\s+(instructions|prompt|rules|configuration|config)\b`,
			`\bwhat\s+(are|were)\s+your\s+(instructions|rules)\b`,
			`\b(prompt|instruksi)\s+(sistem|awal)\b`,
			`\b(tampilkan|tunjukkan|sebutkan)\s+(instruksi|prompt|aturan)\s+(kamu|anda)\b`,
		),
		pairRule("data_exfiltration", models.ThreatPIIExtraction, models.SeverityCritical,
			`\b(list|show|give|dump|export|send|download|tampilkan|berikan|kirim|sebutkan|bocorkan)\b`,
			`\b(all|every|semua|seluruh)\s+(the\s+)?(users?|visitors?|customers?|clients?|leads?|emails?|phone\s+numbers?|contacts?|pengunjung|pelanggan|pengguna|kontak|nomor)\b|\b(user|customer|visitor|client)\s+(data|database|records|list|emails?|phone\s+numbers?)\b|\bdata\s+(pengguna|pelanggan|pengunjung)\b`,
		),
		PatternRule("code_injection", models.ThreatCommandInjection, models.SeverityCritical,
			`\bunion\s+(all\s+)?select\b`,
			`\b(drop|truncate|alter)\s+table\b`,
			`\bdelete\s+from\s+\w+\s+where\b`,
			`\binsert\s+into\s+\w+\s*(\(|values\b)`,
			`'\s*or\s*'?1'?\s*=\s*'?1`,
			`;\s*--`,
			`(;|\|\||&&|\|)\s*(rm|cat|curl|wget|bash|sh|nc|chmod|python)\s`,
			`\$\([^)]*\)`,
			"`[^`]*(rm|cat|curl|wget|ls)[^`]*`",
			`<\s*script\b`,
			`\bjavascript\s*:`,
			`\bon(error|load|click)\s*=`,
			`\.\./\.\./`,
		),
		PatternRule("feedback_tampering", models.ThreatFeedbackManipulation, models.SeverityHigh,
			`\b(delete|remove|change|modify|edit|manipulate|erase|hapus|ubah|ganti|manipulasi)\s+(all\s+|the\s+|my\s+|semua\s+)?(feedback|ratings?|reviews?|ulasan|penilaian|rating)\b`,
			`\b(give|leave|submit|add|post|buat|tambahkan)\s+(\d+\s+)?(fake|palsu)\s+(positive\s+)?(feedback|ratings?|reviews?|ulasan)\b`,
			`\b(fake|palsu)\s+(feedback|ratings?|reviews?|ulasan)\b`,
		),
		{
			Name:     "foreign_link",
			Kind:     models.ThreatCompetitorLink,
			Severity: models.SeverityMedium,
			Test: func(in Input) bool {
				return len(foreignLinks(in.Message, in.TenantDomain)) > 0
			},
		},
	}
}
