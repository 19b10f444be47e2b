package validation

import (
	"regexp"
	"strconv"
	"strings"
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"satu": 1, "dua": 2, "tiga": 3, "empat": 4, "lima": 5,
	"enam": 6, "tujuh": 7, "delapan": 8, "sembilan": 9, "sepuluh": 10,
}

const (
	numberPattern   = `(\d+|one|two|three|four|five|six|seven|eight|nine|ten|satu|dua|tiga|empat|lima|enam|tujuh|delapan|sembilan|sepuluh)`
	propertyNouns   = `(?:properti|property|properties|listings?|rumah|units?|pilihan|options?|apartemen|apartments?|houses?|ruko)`
	unitWords       = `(?:miliar|milyar|milliar|billion|juta|jt|million|mio)`
	shortUnitSuffix = `(?:\s*(?:miliar|milyar|milliar|billion|juta|jt|million|mio|m|b)\b)?`
)

var (
	countBeforeRe = regexp.MustCompile(`(?i)\b(?:found|find|menemukan|ditemukan|ada|terdapat|there (?:are|is)|have|punya|berikut)\s+(?:sebanyak\s+)?` +
		numberPattern + `\s+(?:\p{L}+\s+)?` + propertyNouns + `\b`)
	countAfterRe = regexp.MustCompile(`(?i)\b` + numberPattern + `\s+` + propertyNouns +
		`\s+(?:found|ditemukan|yang cocok|matching|available|tersedia)\b`)

	currencyRe = regexp.MustCompile(`(?i)(?:\b(?:rp|idr|usd)\.?\s?|\$\s?)\d[\d.,]*` + shortUnitSuffix +
		`|\b\d[\d.,]*\s*` + unitWords + `\b`)

	budgetContextRe = regexp.MustCompile(`(?i)(?:di bawah|dibawah|under|below|budget|bujet|anggaran|maksimal|maks|max|maximum|hingga|sampai|up to|kurang dari|less than|tidak lebih dari)\s*$`)

	listingIDRe     = regexp.MustCompile(`(?i)\b(?:id|listing|kode|code)\s*[:#]?\s*[a-z]{0,4}-?\d{2,}\b`)
	specRe          = regexp.MustCompile(`(?i)\b\d+\s*(?:kt|km|kamar tidur|kamar mandi|bedrooms?|bathrooms?|br|m2|sqm)\b|\b(?:lt|lb)\s*\d+`)
	locationMarkRe  = regexp.MustCompile(`(?i)\b(?:berlokasi di|terletak di|located (?:in|at)|lokasi\s*:)`)
	propertyQueryRe = regexp.MustCompile(`(?i)\b(?:found|menemukan|ditemukan|tersedia|available|here (?:are|is)|berikut|ada|offer|menawarkan|recommend|rekomendasi)\b`)
	propertyNounRe  = regexp.MustCompile(`(?i)\b` + propertyNouns + `|\b(?:tanah|villa|land)\b`)
)

// amenities maps each checked feature to the words that mention it.
var amenities = []struct {
	name  string
	words []string
}{
	{"pool", []string{"pool", "kolam renang"}},
	{"garden", []string{"garden", "taman"}},
	{"rooftop", []string{"rooftop"}},
	{"gym", []string{"gym", "fitness"}},
	{"basement parking", []string{"basement parking", "parkir basement"}},
	{"jacuzzi", []string{"jacuzzi"}},
	{"sauna", []string{"sauna"}},
	{"playground", []string{"playground", "taman bermain"}},
	{"private lift", []string{"private lift", "lift pribadi"}},
	{"smart home", []string{"smart home"}},
	{"sea view", []string{"sea view", "pemandangan laut"}},
}

var availabilityPhrases = []string{
	"available now", "available immediately", "immediately available", "ready to move",
	"move-in ready", "ready stock", "siap huni", "tersedia sekarang", "bisa langsung ditempati",
	"langsung huni",
}

func countOf(word string) (int, bool) {
	if n, ok := numberWords[strings.ToLower(word)]; ok {
		return n, true
	}
	n, err := strconv.Atoi(word)
	return n, err == nil
}

// mentionsWord is a case-insensitive whole-word test.
func mentionsWord(lowerText, word string) bool {
	idx := 0
	for {
		i := strings.Index(lowerText[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		if boundary(lowerText, start-1) && boundary(lowerText, end) {
			return true
		}
		idx = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

// HasPropertyFacts reports whether text states listing-shaped facts such as a
// price, a listing id, room counts or a location marker.
func HasPropertyFacts(text string) bool {
	return currencyRe.MatchString(text) ||
		listingIDRe.MatchString(text) ||
		specRe.MatchString(text) ||
		locationMarkRe.MatchString(text)
}

// LooksLikePropertyAnswer reports whether text presents listings: an offering
// verb together with a property noun.
func LooksLikePropertyAnswer(text string) bool {
	return propertyQueryRe.MatchString(text) && propertyNounRe.MatchString(text)
}
