// Package search filters and ranks property catalogs for the chat tools, and
// cascades co-brokerage searches across office and national catalogs.
package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/internal/price"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

// Display caps per search tier.
const (
	PersonalCap = 3
	OfficeCap   = 5
)

// Mode selects the display cap applied to a search.
type Mode int

const (
	ModePersonal Mode = iota
	ModeOffice
)

// Cap returns the number of listings shown for the mode.
func (m Mode) Cap() int {
	if m == ModeOffice {
		return OfficeCap
	}
	return PersonalCap
}

func (m Mode) String() string {
	if m == ModeOffice {
		return "office"
	}
	return "personal"
}

// Criteria is what the visitor asked for. Zero values mean "any".
type Criteria struct {
	Location    string
	MaxPrice    float64
	Type        string
	MinBedrooms int
	Category    string
	Keyword     string
}

func (c Criteria) normalized() Criteria {
	c.Location = strings.TrimSpace(c.Location)
	c.Type = NormalizeType(c.Type)
	c.Category = NormalizeCategory(c.Category)
	c.Keyword = strings.ToLower(strings.TrimSpace(c.Keyword))
	return c
}

// Fallback names the ladder tier that produced a result.
type Fallback string

const (
	FallbackNone     Fallback = ""
	FallbackLocation Fallback = "location"
	FallbackCategory Fallback = "category"
)

// Result is a ranked, capped search outcome.
type Result struct {
	Properties []models.Property
	// Total counts matches before the display cap.
	Total    int
	Note     string
	Fallback Fallback
}

const (
	noteBroadened = "No listing matched %q exactly, so the search was broadened to related areas."
	noteCategory  = "No houses matched, so %s listings are shown instead."
)

var categoryLabels = map[string]string{
	CategoryApartment: "apartment",
	CategoryShophouse: "shophouse (ruko)",
}

type locationMode int

const (
	matchAll locationMode = iota
	matchAny
)

// Engine runs catalog searches with the fallback ladder.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Search filters catalog by c. When nothing matches it walks the fallback ladder:
// broadened location first, then house to apartment to shophouse. The first tier
// with results wins.
func (e *Engine) Search(catalog []models.Property, c Criteria, mode Mode) Result {
	c = c.normalized()

	var res Result
	matches := filter(catalog, c, matchAll)
	if len(matches) == 0 {
		matches, res.Note, res.Fallback = e.ladder(catalog, c)
	}

	res.Total = len(matches)
	res.Properties = capped(matches, mode.Cap())
	metrics.SearchResultsCount.WithLabelValues(mode.String()).Observe(float64(len(res.Properties)))

	e.logger.Debug("catalog searched",
		"location", c.Location,
		"category", c.Category,
		"type", c.Type,
		"matches", res.Total,
		"fallback", string(res.Fallback),
	)
	return res
}

func (e *Engine) ladder(catalog []models.Property, c Criteria) ([]models.Property, string, Fallback) {
	if c.Location != "" {
		if m := filter(catalog, c, matchAny); len(m) > 0 {
			return m, fmt.Sprintf(noteBroadened, c.Location), FallbackLocation
		}
	}
	if c.Category == CategoryHouse {
		for _, alt := range []string{CategoryApartment, CategoryShophouse} {
			next := c
			next.Category = alt
			if m := filter(catalog, next, matchAll); len(m) > 0 {
				return m, fmt.Sprintf(noteCategory, categoryLabels[alt]), FallbackCategory
			}
		}
	}
	return nil, "", FallbackNone
}

// Filter applies every criterion without the fallback ladder or display cap.
func Filter(catalog []models.Property, c Criteria) []models.Property {
	return filter(catalog, c.normalized(), matchAll)
}

type scored struct {
	prop  models.Property
	score int
}

func filter(catalog []models.Property, c Criteria, mode locationMode) []models.Property {
	query := significantTokens(c.Location)

	var hits []scored
	for _, p := range catalog {
		score, ok := matchLocation(p, query, mode)
		if !ok ||
			!matchType(p, c.Type) ||
			!matchCategory(p, c.Category) ||
			!matchKeyword(p, c.Keyword) ||
			!matchPrice(p, c.MaxPrice) ||
			!matchBedrooms(p, c.MinBedrooms) {
			continue
		}
		hits = append(hits, scored{prop: p, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]models.Property, len(hits))
	for i, h := range hits {
		out[i] = h.prop
	}
	return out
}

// matchLocation scores token overlap. Tokens found in the location field count
// twice so listings located in the area outrank ones that only mention it.
func matchLocation(p models.Property, query []string, mode locationMode) (int, bool) {
	if len(query) == 0 {
		return 0, true
	}
	all := tokenSet(p.Location, p.Title, p.Description, p.POI)
	loc := tokenSet(p.Location)

	found, score := 0, 0
	for _, t := range query {
		if all[t] {
			found++
			score++
		}
		if loc[t] {
			score++
		}
	}
	if mode == matchAll {
		return score, found == len(query)
	}
	return score, found > 0
}

func matchType(p models.Property, want string) bool {
	if want == "" {
		return true
	}
	return strings.EqualFold(NormalizeType(p.Type), want)
}

func matchCategory(p models.Property, category string) bool {
	if category == "" {
		return true
	}
	own, ok := categoryKeywords[category]
	if !ok {
		return true
	}

	text := canonical(p.Title + " " + p.Location)
	if !hasAnyWord(text, own) {
		return false
	}
	landValued := category == CategoryHouse && hasAnyWord(text, landValuedPhrases)

	for sibling, words := range categoryKeywords {
		if sibling == category || (sibling == CategoryLand && landValued) {
			continue
		}
		for _, w := range words {
			if mentionsOutside(text, w, own) {
				return false
			}
		}
	}
	return true
}

func matchKeyword(p models.Property, kw string) bool {
	if kw == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Description), kw) ||
		strings.Contains(strings.ToLower(p.Title), kw)
}

func matchPrice(p models.Property, max float64) bool {
	if max <= 0 {
		return true
	}
	return price.Within(p.Price, max)
}

// matchBedrooms keeps listings whose bedroom count is unknown.
func matchBedrooms(p models.Property, min int) bool {
	if min <= 0 {
		return true
	}
	n := p.Bedrooms
	if n == 0 {
		var ok bool
		if n, ok = bedroomsIn(p.Title + " " + p.Description); !ok {
			return true
		}
	}
	return n >= min
}

func capped(props []models.Property, n int) []models.Property {
	if len(props) > n {
		return props[:n]
	}
	return props
}
