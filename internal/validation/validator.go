// Package validation flags facts in outbound replies that the tool results do
// not back. Warnings never change the reply.
package validation

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/internal/price"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// priceTolerance is the relative difference under which two amounts are equal.
const priceTolerance = 1e-6

// Input is one reply together with the listings the tools actually returned.
// ToolUsed is set when any tool ran; Searched when that tool was a search, in
// which case Results is what the reply is checked against.
type Input struct {
	TenantID string
	Text     string
	Results  []models.Property
	ToolUsed bool
	Searched bool
}

// Validator runs the heuristic checks.
type Validator struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Validator.
func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger, now: time.Now}
}

// Validate returns one warning per failed check. A reply that states listing
// facts without any tool call yields only NO_TOOL_USAGE, since there is nothing
// to compare against.
func (v *Validator) Validate(in Input) []models.ValidationWarning {
	var warnings []models.ValidationWarning
	add := func(kind models.WarningKind, evidence []string) {
		if len(evidence) == 0 {
			return
		}
		warnings = append(warnings, models.ValidationWarning{
			TenantID:  in.TenantID,
			Timestamp: v.now(),
			Kind:      kind,
			Evidence:  evidence,
		})
	}

	switch {
	case !in.ToolUsed:
		if HasPropertyFacts(in.Text) {
			add(models.WarningNoToolUsage, []string{"reply states listing facts without a search"})
		}
	case in.Searched:
		add(models.WarningCountMismatch, countMismatches(in.Text, len(in.Results)))
		add(models.WarningFakePrice, unknownPrices(in.Text, in.Results))
		add(models.WarningHallucinatedFeature, unbackedAmenities(in.Text, in.Results))
		add(models.WarningUnverifiedClaim, unbackedAvailability(in.Text, in.Results))
	}

	for _, w := range warnings {
		metrics.ValidationWarningsTotal.WithLabelValues(string(w.Kind)).Inc()
		v.logger.Warn("reply validation warning",
			"tenant", in.TenantID,
			"kind", string(w.Kind),
			"evidence", w.Evidence,
		)
	}
	return warnings
}

func countMismatches(text string, actual int) []string {
	var evidence []string
	for _, re := range []*regexp.Regexp{countBeforeRe, countAfterRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			n, ok := countOf(m[1])
			if !ok || n == actual {
				continue
			}
			evidence = append(evidence, fmt.Sprintf("%q claims %d, search returned %d", strings.TrimSpace(m[0]), n, actual))
		}
	}
	return evidence
}

func unknownPrices(text string, results []models.Property) []string {
	var known []float64
	for _, p := range results {
		if amount, ok := price.Parse(p.Price); ok {
			known = append(known, amount)
		}
	}

	var evidence []string
	for _, loc := range currencyRe.FindAllStringIndex(text, -1) {
		if budgetContextRe.MatchString(text[:loc[0]]) {
			continue
		}
		raw := strings.TrimRight(text[loc[0]:loc[1]], ".,")
		amount, ok := price.Parse(raw)
		if !ok || containsAmount(known, amount) {
			continue
		}
		evidence = append(evidence, strings.TrimSpace(raw))
	}
	return evidence
}

func containsAmount(known []float64, amount float64) bool {
	for _, k := range known {
		if math.Abs(k-amount) <= priceTolerance*math.Max(k, amount) {
			return true
		}
	}
	return false
}

func corpus(results []models.Property) string {
	var b strings.Builder
	for _, p := range results {
		b.WriteString(strings.ToLower(p.Title + " " + p.Location + " " + p.Description + " " + p.POI))
		b.WriteByte('\n')
	}
	return b.String()
}

func unbackedAmenities(text string, results []models.Property) []string {
	lower := strings.ToLower(text)
	backing := corpus(results)

	var evidence []string
	for _, a := range amenities {
		mentioned, backed := false, false
		for _, w := range a.words {
			mentioned = mentioned || mentionsWord(lower, w)
			backed = backed || mentionsWord(backing, w)
		}
		if mentioned && !backed {
			evidence = append(evidence, a.name)
		}
	}
	return evidence
}

func unbackedAvailability(text string, results []models.Property) []string {
	lower := strings.ToLower(text)
	backing := corpus(results)

	var evidence []string
	for _, phrase := range availabilityPhrases {
		if strings.Contains(lower, phrase) && !strings.Contains(backing, phrase) {
			evidence = append(evidence, phrase)
		}
	}
	return evidence
}
