package search

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Property categories accepted by Criteria.Category.
const (
	CategoryHouse     = "house"
	CategoryApartment = "apartment"
	CategoryShophouse = "shophouse"
	CategoryBuilding  = "building"
	CategoryLand      = "land"
)

var (
	reNonWord  = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	reBedrooms = regexp.MustCompile(`(?i)(\d+)\s*(?:kt|kamar tidur|bedrooms?|beds?|br)\b`)

	fold = cases.Fold()
)

// regionSynonyms rewrites colloquial or English region names to one canonical form
// so "jaksel", "south jakarta" and "jakarta selatan" all compare equal.
var regionSynonyms = []struct{ from, to string }{
	{"jaksel", "jakarta selatan"},
	{"jakbar", "jakarta barat"},
	{"jaktim", "jakarta timur"},
	{"jakut", "jakarta utara"},
	{"jakpus", "jakarta pusat"},
	{"south jakarta", "jakarta selatan"},
	{"west jakarta", "jakarta barat"},
	{"east jakarta", "jakarta timur"},
	{"north jakarta", "jakarta utara"},
	{"central jakarta", "jakarta pusat"},
	{"tangsel", "tangerang selatan"},
	{"south tangerang", "tangerang selatan"},
	{"bsd city", "bsd"},
	{"jogjakarta", "yogyakarta"},
	{"jogja", "yogyakarta"},
	{"jkt", "jakarta"},
}

// stopWords never count toward a location match.
var stopWords = map[string]bool{
	"di": true, "in": true, "the": true, "at": true, "of": true, "and": true, "dan": true,
	"area": true, "daerah": true, "kawasan": true, "wilayah": true, "sekitar": true,
	"dekat": true, "near": true, "around": true, "kota": true, "city": true,
	"jalan": true, "jl": true, "street": true, "rumah": true, "house": true,
}

var categoryKeywords = map[string][]string{
	CategoryHouse:     {"rumah", "house", "townhouse"},
	CategoryApartment: {"apartemen", "apartment", "condo"},
	CategoryShophouse: {"ruko", "shophouse", "rukan", "rumah toko"},
	CategoryBuilding:  {"gedung", "building", "kantor"},
	CategoryLand:      {"tanah", "land", "kavling", "lahan"},
}

// landValuedPhrases mark a house sold at land value. Such a listing stays a
// house even though it mentions land.
var landValuedPhrases = []string{"hitung tanah", "valued for land", "harga tanah"}

var categoryAliases = map[string]string{
	"rumah": CategoryHouse, "house": CategoryHouse, "home": CategoryHouse,
	"apartemen": CategoryApartment, "apartment": CategoryApartment, "apt": CategoryApartment,
	"condo": CategoryApartment, "kondominium": CategoryApartment,
	"ruko": CategoryShophouse, "shophouse": CategoryShophouse, "rukan": CategoryShophouse,
	"gedung": CategoryBuilding, "building": CategoryBuilding, "kantor": CategoryBuilding, "office": CategoryBuilding,
	"tanah": CategoryLand, "land": CategoryLand, "kavling": CategoryLand, "lahan": CategoryLand,
}

var typeAliases = map[string]string{
	"jual": "Sale", "dijual": "Sale", "sale": "Sale", "for sale": "Sale", "beli": "Sale", "buy": "Sale",
	"sewa": "Rent", "disewakan": "Rent", "rent": "Rent", "for rent": "Rent", "lease": "Rent",
}

// NormalizeCategory maps a category word in either language to its canonical name.
// Unknown values are returned lowercased.
func NormalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := categoryAliases[s]; ok {
		return c
	}
	return s
}

// NormalizeType maps jual/sewa style aliases onto Sale or Rent.
func NormalizeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if t, ok := typeAliases[s]; ok {
		return t
	}
	return s
}

// canonical folds case, collapses punctuation and rewrites region synonyms.
func canonical(s string) string {
	s = reNonWord.ReplaceAllString(fold.String(s), " ")
	s = " " + strings.Join(strings.Fields(s), " ") + " "
	for _, syn := range regionSynonyms {
		s = strings.ReplaceAll(s, " "+syn.from+" ", " "+syn.to+" ")
	}
	return strings.TrimSpace(s)
}

// significantTokens returns the distinct canonical words of s that are not stop-words.
func significantTokens(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range strings.Fields(canonical(s)) {
		if seen[t] || stopWords[t] || len(t) < 2 {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func tokenSet(parts ...string) map[string]bool {
	set := make(map[string]bool)
	for _, p := range parts {
		for _, t := range strings.Fields(canonical(p)) {
			set[t] = true
		}
	}
	return set
}

// hasWord reports whether some word of canonical text starts with w. A
// multi-word w must start at a word boundary.
func hasWord(text, w string) bool {
	return strings.Contains(" "+text, " "+w)
}

func hasAnyWord(text string, words []string) bool {
	for _, w := range words {
		if hasWord(text, w) {
			return true
		}
	}
	return false
}

// mentionsOutside reports whether word occurs in text other than inside one of
// the owner keywords, so "rumah" inside "rumah toko" does not make a ruko a house.
func mentionsOutside(text, word string, owners []string) bool {
	for _, kw := range owners {
		if kw != word && strings.Contains(kw, word) {
			text = strings.ReplaceAll(text, kw, " ")
		}
	}
	return hasWord(text, word)
}

// bedroomsIn extracts a bedroom count from free text. ok is false when none is stated.
func bedroomsIn(text string) (int, bool) {
	m := reBedrooms.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
