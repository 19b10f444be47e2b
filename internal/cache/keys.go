package cache

import "fmt"

// RateLimitKey scopes an admin API key's request counter.
func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

// ChatRateLimitKey scopes the public chat counter to one visitor on one tenant.
func ChatRateLimitKey(tenantID, clientIP string) string {
	return fmt.Sprintf("ratelimit:chat:%s:%s", tenantID, clientIP)
}
