package security

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Placeholders carry no digits, "@" or "://" so a redacted text never re-matches.
const (
	PlaceholderEmail      = "[email removed]"
	PlaceholderPhone      = "[phone removed]"
	PlaceholderLink       = "[link removed]"
	PlaceholderCredential = "[credential removed]"
)

const maxSanitizePasses = 5

var (
	credentialRe = regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|access[_-]?token|auth[_-]?token|token|password|passwd|pwd|secret|client[_-]?secret)\s*[:=]\s*["']?[A-Za-z0-9_\-./+=]{8,}["']?`)

	// phoneRe matches Indonesian mobile numbers (08xx / +628xx / 628xx) and
	// Jakarta-style landlines. It is not anchored on word boundaries so numbers
	// glued to other text are still caught.
	phoneRe = regexp.MustCompile(`(?:\+62[\s.-]?|62|0)8\d{1,2}[\s.-]?\d{3,4}[\s.-]?\d{3,5}|\(?0(?:21|22|24|31|61|274|361)\)?[\s.-]?\d{3,4}[\s.-]?\d{4}`)
)

// SanitizeResult is the scrubbed text and what was removed.
type SanitizeResult struct {
	Sanitized  string             `json:"sanitized"`
	Redactions []models.Redaction `json:"redactions,omitempty"`
}

// Total is the number of individual redactions.
func (r SanitizeResult) Total() int {
	n := 0
	for _, rd := range r.Redactions {
		n += rd.Count
	}
	return n
}

// Sanitizer redacts contact details and links that do not belong to the tenant.
type Sanitizer struct {
	logger *slog.Logger
}

// NewSanitizer returns a Sanitizer that logs redactions to logger (slog.Default when nil).
func NewSanitizer(logger *slog.Logger) *Sanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sanitizer{logger: logger}
}

// Sanitize scrubs text for the tenant owning tenantDomain. Passes repeat until
// a pass changes nothing.
func (s *Sanitizer) Sanitize(tenantDomain, text string) SanitizeResult {
	domain := models.TenantDomain(tenantDomain)
	counts := map[string]int{}

	out := text
	for pass := 0; pass < maxSanitizePasses; pass++ {
		n := 0
		out, n = s.pass(domain, out, counts)
		if n == 0 {
			break
		}
	}

	res := SanitizeResult{Sanitized: out}
	for _, kind := range []string{"credential", "phone", "email", "link"} {
		if c := counts[kind]; c > 0 {
			res.Redactions = append(res.Redactions, models.Redaction{
				Kind:    kind,
				Count:   c,
				Summary: summarize(kind, c),
			})
		}
	}
	if len(res.Redactions) > 0 {
		s.logger.Warn("outbound reply redacted",
			"tenant", domain,
			"redactions", res.Total(),
		)
	}
	return res
}

func (s *Sanitizer) pass(domain, text string, counts map[string]int) (string, int) {
	total := 0
	count := func(kind string) func(string) string {
		return func(string) string {
			counts[kind]++
			total++
			return placeholderFor(kind)
		}
	}

	text = credentialRe.ReplaceAllStringFunc(text, count("credential"))
	text = phoneRe.ReplaceAllStringFunc(text, count("phone"))
	text = emailRe.ReplaceAllStringFunc(text, func(m string) string {
		at := strings.LastIndex(m, "@")
		if isTenantHost(m[at+1:], domain) {
			return m
		}
		counts["email"]++
		total++
		return PlaceholderEmail
	})
	text, n := redactLinks(domain, text, counts)
	return text, total + n
}

// redactLinks replaces foreign links and re-checks the path of kept tenant links,
// which may embed a redirect to somewhere else.
func redactLinks(domain, text string, counts map[string]int) (string, int) {
	n := 0
	// mask kept emails so their domain is not read as a bare link
	masked := emailRe.ReplaceAllStringFunc(text, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	locs := urlRe.FindAllStringIndex(masked, -1)
	if len(locs) == 0 {
		return text, 0
	}

	var b strings.Builder
	last := 0
	for _, loc := range locs {
		link := text[loc[0]:loc[1]]
		b.WriteString(text[last:loc[0]])
		last = loc[1]

		if !isTenantHost(hostOf(link), domain) {
			counts["link"]++
			n++
			b.WriteString(PlaceholderLink)
			continue
		}
		tail := tailOf(link)
		if tail == "" {
			b.WriteString(link)
			continue
		}
		cleaned, tn := redactLinks(domain, tail, counts)
		n += tn
		b.WriteString(link[:len(link)-len(tail)])
		b.WriteString(cleaned)
	}
	b.WriteString(text[last:])
	return b.String(), n
}

func placeholderFor(kind string) string {
	switch kind {
	case "credential":
		return PlaceholderCredential
	case "phone":
		return PlaceholderPhone
	case "email":
		return PlaceholderEmail
	default:
		return PlaceholderLink
	}
}

func summarize(kind string, n int) string {
	noun := map[string]string{
		"credential": "credential",
		"phone":      "phone number",
		"email":      "email address",
		"link":       "external link",
	}[kind]
	if n != 1 {
		noun += "s"
		if kind == "email" {
			noun = "email addresses"
		}
	}
	return fmt.Sprintf("%d %s redacted", n, noun)
}
