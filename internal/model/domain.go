package model

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeDomain canonicalizes user input like "HTTPS://www.Acme.dev/pricing"
// to "acme.dev". Analyses for the same site must land on the same key no
// matter how the caller typed it.
func NormalizeDomain(raw string) (string, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", fmt.Errorf("domain is empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse domain %q: %w", raw, err)
	}
	host := u.Hostname()
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return "", fmt.Errorf("invalid domain %q", raw)
	}
	return host, nil
}

// BrandLabel derives a display name from the leftmost domain label, so
// "acme-corp.io" becomes "Acme-Corp". Empty input yields an empty label.
func BrandLabel(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return ""
	}
	return cases.Title(language.English).String(label)
}
