package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const sanitizeTenant = "agent-budi.com"

func redactionCount(res SanitizeResult, kind string) int {
	for _, r := range res.Redactions {
		if r.Kind == kind {
			return r.Count
		}
	}
	return 0
}

func TestSanitize_RedactsForeignEmailKeepsTenantEmail(t *testing.T) {
	s := NewSanitizer(nil)

	res := s.Sanitize(sanitizeTenant, "Hubungi budi@agent-budi.com atau joko@gmail.com")
	assert.Equal(t, "Hubungi budi@agent-budi.com atau "+PlaceholderEmail, res.Sanitized)
	assert.Equal(t, 1, redactionCount(res, "email"))
	assert.Equal(t, "1 email address redacted", res.Redactions[0].Summary)
}

func TestSanitize_RedactsPhoneNumbers(t *testing.T) {
	s := NewSanitizer(nil)

	for _, phone := range []string{
		"081234567890",
		"0812-3456-7890",
		"+62 812 3456 7890",
		"6281234567890",
		"(021) 555-1234",
	} {
		res := s.Sanitize(sanitizeTenant, "WA saya di "+phone+" ya")
		assert.Equal(t, "WA saya di "+PlaceholderPhone+" ya", res.Sanitized, phone)
	}
}

func TestSanitize_PhoneGluedToText(t *testing.T) {
	s := NewSanitizer(nil)
	res := s.Sanitize(sanitizeTenant, "call:081234567890now")
	assert.Equal(t, "call:"+PlaceholderPhone+"now", res.Sanitized)
}

func TestSanitize_LeavesPricesAlone(t *testing.T) {
	s := NewSanitizer(nil)
	in := "Harga Rp. 7.750.000.000, luas 120 m2, 3 kamar tidur."
	res := s.Sanitize(sanitizeTenant, in)
	assert.Equal(t, in, res.Sanitized)
	assert.Empty(t, res.Redactions)
}

func TestSanitize_Links(t *testing.T) {
	s := NewSanitizer(nil)

	res := s.Sanitize(sanitizeTenant, "Lihat https://agent-budi.com/p/12 dan https://rumah123.com/x serta lamudi.co.id")
	assert.Equal(t, "Lihat https://agent-budi.com/p/12 dan "+PlaceholderLink+" serta "+PlaceholderLink, res.Sanitized)
	assert.Equal(t, 2, redactionCount(res, "link"))
	assert.Equal(t, "2 external links redacted", res.Redactions[0].Summary)
}

func TestSanitize_TenantLinkWithEmbeddedRedirect(t *testing.T) {
	s := NewSanitizer(nil)

	res := s.Sanitize(sanitizeTenant, "klik https://www.agent-budi.com/go?to=https://evil.com/a")
	assert.Equal(t, "klik https://www.agent-budi.com/go?to="+PlaceholderLink, res.Sanitized)
}

func TestSanitize_Credentials(t *testing.T) {
	s := NewSanitizer(nil)

	res := s.Sanitize(sanitizeTenant, "config api_key=sk_live_abcdef123456 and password: hunter2hunter2")
	assert.Equal(t, "config "+PlaceholderCredential+" and "+PlaceholderCredential, res.Sanitized)
	assert.Equal(t, 2, redactionCount(res, "credential"))
}

func TestSanitize_ShortTokenValueIsNotCredential(t *testing.T) {
	s := NewSanitizer(nil)
	res := s.Sanitize(sanitizeTenant, "token: abc")
	assert.Equal(t, "token: abc", res.Sanitized)
}

func TestSanitize_NoTenantRedactsAllLinks(t *testing.T) {
	s := NewSanitizer(nil)
	res := s.Sanitize("", "see https://agent-budi.com")
	assert.Equal(t, "see "+PlaceholderLink, res.Sanitized)
}

func TestSanitize_PlaceholdersDoNotRematch(t *testing.T) {
	for _, p := range []string{PlaceholderEmail, PlaceholderPhone, PlaceholderLink, PlaceholderCredential} {
		assert.False(t, strings.ContainsAny(p, "0123456789@"), p)
		assert.NotContains(t, p, "://")
	}
}

// fragments biased toward the shapes the sanitizer must catch.
var fragments = []string{
	"joko@gmail.com", "budi@agent-budi.com", "x@agent-budi.com.evil.io",
	"081234567890", "+62 812-3456-7890", "(021) 555 1234", "62812345678",
	"https://evil.com/a", "www.other.co.id", "lamudi.co.id/rumah",
	"https://agent-budi.com/p?r=https://evil.com", "agent-budi.com/x",
	"api_key=abcdefgh12345", "token: zzzzzzzzzzzz",
	" ", "Rp. 7.750.000.000", "rumah", "@", ".", "/", ":", "0", "8", "-",
}

func TestSanitize_Property_NoForeignContactSurvives(t *testing.T) {
	s := NewSanitizer(nil)

	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(rapid.OneOf(
			rapid.SampledFrom(fragments),
			rapid.StringMatching(`[a-z0-9@.:/ +-]{0,12}`),
		), 0, 12).Draw(t, "parts")
		in := strings.Join(parts, "")

		res := s.Sanitize(sanitizeTenant, in)
		out := res.Sanitized

		if loc := phoneRe.FindString(out); loc != "" {
			t.Fatalf("phone %q survived in %q", loc, out)
		}
		for _, m := range emailRe.FindAllStringSubmatch(out, -1) {
			if !isTenantHost(m[1], sanitizeTenant) {
				t.Fatalf("foreign email %q survived in %q", m[0], out)
			}
		}
		if links := foreignLinks(out, sanitizeTenant); len(links) > 0 {
			t.Fatalf("foreign links %v survived in %q", links, out)
		}

		again := s.Sanitize(sanitizeTenant, out)
		require.Equal(t, out, again.Sanitized)
		require.Zero(t, again.Total())
	})
}
