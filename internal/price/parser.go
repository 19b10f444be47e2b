// Package price turns free-text listing prices ("Rp. 1,4 Milyar", "IDR 750.000.000")
// into numeric amounts.
package price

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	billion = 1e9
	million = 1e6
)

var (
	billionRe = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(?:miliar|milyar|milliar|billion|bn|b|m)\b`)
	millionRe = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(?:juta|jt|million|mio)\b`)
	numeralRe = regexp.MustCompile(`^\d[\d.,]*`)

	currencyPrefixes = []string{"idr", "usd", "rp", "$"}
)

// Parse returns the amount described by text. ok is false when the text holds no
// number ("Contact for price"); callers must not exclude a listing in that case.
func Parse(text string) (amount float64, ok bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return 0, false
	}

	if m := billionRe.FindStringSubmatch(s); m != nil {
		if v, ok := scaledNumber(m[1]); ok {
			return v * billion, true
		}
	}
	if m := millionRe.FindStringSubmatch(s); m != nil {
		if v, ok := scaledNumber(m[1]); ok {
			return v * million, true
		}
	}

	s = stripCurrency(s)
	numeral := numeralRe.FindString(s)
	if numeral == "" {
		return 0, false
	}
	return plainNumber(numeral)
}

// stripCurrency removes a leading currency marker and the punctuation and
// whitespace that usually follows it ("Rp. ", "IDR ").
func stripCurrency(s string) string {
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	return strings.TrimLeft(s, " .:\t")
}

// scaledNumber parses the number in front of a unit word, where a single
// separator is a decimal mark ("1,4 milyar") unless it groups thousands ("1.500 juta").
func scaledNumber(s string) (float64, bool) {
	s = strings.Trim(s, ".,")
	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	switch {
	case dots+commas == 0:
	case dots+commas >= 2:
		return plainNumber(s)
	default:
		sep := "."
		if commas == 1 {
			sep = ","
		}
		frac := s[strings.Index(s, sep)+1:]
		if len(frac) == 3 && sep == "." {
			s = strings.ReplaceAll(s, sep, "")
		} else {
			s = strings.Replace(s, sep, ".", 1)
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// plainNumber treats every separator as a thousands separator. A trailing
// two-digit group after a different separator is a cents suffix and is dropped.
func plainNumber(s string) (float64, bool) {
	s = strings.Trim(s, ".,")
	if s == "" {
		return 0, false
	}
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 == 2 {
		last := s[i]
		other := byte('.')
		if last == '.' {
			other = ','
		}
		if strings.IndexByte(s[:i], other) >= 0 {
			s = s[:i]
		}
	}
	s = strings.NewReplacer(".", "", ",", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Within reports whether text is at most max. Unparseable prices always pass.
func Within(text string, max float64) bool {
	v, ok := Parse(text)
	if !ok {
		return true
	}
	return v <= max
}
