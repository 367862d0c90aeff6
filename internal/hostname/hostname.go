// Package hostname implements the strict site-matching policy: exact
// hostname comparison, with a bare hostname also covering its "www."
// variant. No other subdomain inference.
package hostname

import (
	"net/url"
	"strings"
)

// Normalize lowercases a hostname and strips surrounding whitespace and a
// trailing dot. It is idempotent.
func Normalize(hostname string) string {
	h := strings.TrimSpace(strings.ToLower(hostname))
	return strings.TrimSuffix(h, ".")
}

// FromURL extracts the hostname from a URL. Only http and https URLs carry a
// matchable hostname; anything else (extension pages, about:, file:) reports
// false.
func FromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return Normalize(host), true
}

// Matches reports whether the host seen in a URL belongs to the configured
// hostname. A configured hostname without a "www." prefix also matches its
// "www." variant; a configured hostname carrying "www." matches only itself.
func Matches(configured, host string) bool {
	configured = Normalize(configured)
	host = Normalize(host)
	if configured == host {
		return true
	}
	if !strings.HasPrefix(configured, "www.") && host == "www."+configured {
		return true
	}
	return false
}
