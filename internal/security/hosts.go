package security

import (
	"regexp"
	"strings"
)

var (
	// urlRe matches scheme or www-prefixed links and bare domains on common TLDs.
	urlRe = regexp.MustCompile(`(?i)(?:https?://|www\.)[^\s<>"'\[\]()]+|\b(?:[a-z0-9-]+\.)+(?:com|net|org|id|io|co|xyz|info|biz|me|app|site|link|ly)\b(?:/[^\s<>"'\[\]()]*)?`)

	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@([A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,})`)
)

// hostOf extracts the lowercase host of a matched link, without "www.".
func hostOf(link string) string {
	h := strings.ToLower(link)
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#:"); i >= 0 {
		h = h[:i]
	}
	if i := strings.LastIndex(h, "@"); i >= 0 {
		h = h[i+1:]
	}
	return strings.TrimPrefix(h, "www.")
}

// tailOf returns whatever follows the host of a link.
func tailOf(link string) string {
	rest := link
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		return rest[i:]
	}
	return ""
}

// isTenantHost reports whether host is the tenant domain or one of its subdomains.
func isTenantHost(host, tenantDomain string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if tenantDomain == "" || host == "" {
		return false
	}
	return host == tenantDomain || strings.HasSuffix(host, "."+tenantDomain)
}

// foreignLinks returns the links in text that point outside the tenant domain.
func foreignLinks(text, tenantDomain string) []string {
	var out []string
	for _, link := range urlRe.FindAllString(emailRe.ReplaceAllString(text, " "), -1) {
		if !isTenantHost(hostOf(link), tenantDomain) {
			out = append(out, link)
		}
	}
	return out
}
