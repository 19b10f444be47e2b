package chat

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var indonesianWords = wordSet(
	"saya", "aku", "anda", "kamu", "yang", "dan", "di", "ke", "dari", "untuk", "dengan",
	"ini", "itu", "ada", "apa", "apakah", "berapa", "bisa", "mau", "ingin", "cari", "carikan",
	"tolong", "rumah", "tanah", "harga", "juta", "miliar", "milyar", "dijual", "disewa", "sewa",
	"kamar", "tidur", "dekat", "daerah", "lokasi", "terima", "kasih", "halo", "selamat", "pagi",
	"siang", "sore", "malam", "besok", "lusa", "minggu", "depan", "jadwal", "lihat", "tidak",
	"belum", "sudah", "dong", "ya", "gak", "nggak", "murah", "bagus", "ruko",
)

var englishWords = wordSet(
	"i", "you", "the", "and", "in", "to", "from", "for", "with", "this", "that", "is", "are",
	"what", "how", "much", "can", "could", "want", "would", "like", "find", "search", "looking",
	"please", "house", "home", "land", "price", "million", "billion", "sale", "rent", "bedroom",
	"bedrooms", "near", "area", "location", "thanks", "thank", "hello", "hi", "good", "morning",
	"afternoon", "evening", "tomorrow", "next", "week", "schedule", "viewing", "not", "any",
	"cheap", "apartment", "under", "show", "me",
)

func wordSet(list ...string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, w := range list {
		m[w] = true
	}
	return m
}

func words(text string) []string {
	return strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// lexiconLanguage votes with the fixed word lists. ok is false when the text
// has no lexicon words or the vote is tied.
func lexiconLanguage(text string) (language.Tag, bool) {
	var id, en int
	for _, w := range words(text) {
		if indonesianWords[w] {
			id++
		}
		if englishWords[w] {
			en++
		}
	}
	switch {
	case id > en:
		return language.Indonesian, true
	case en > id:
		return language.English, true
	}
	return language.Und, false
}

// DetectLanguage picks the reply language from the message, then the most
// recent user turn, then fallback.
func DetectLanguage(message string, history []Turn, fallback language.Tag) language.Tag {
	if tag, ok := lexiconLanguage(message); ok {
		return tag
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != RoleUser {
			continue
		}
		if tag, ok := lexiconLanguage(history[i].Text); ok {
			return tag
		}
		break
	}
	return fallback
}

// languageCode reduces a tag to the "id" or "en" code used for localized text.
func languageCode(tag language.Tag) string {
	if base, _ := tag.Base(); base.String() == "en" {
		return "en"
	}
	return "id"
}
