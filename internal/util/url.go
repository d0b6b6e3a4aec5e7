package util

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseHTTPURL parses rawURL and rejects anything that is not an absolute
// http(s) URL with a host.
func ParseHTTPURL(rawURL string) (*url.URL, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %s: %w", rawURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q: only http and https allowed", parsedURL.Scheme)
	}
	if parsedURL.Hostname() == "" {
		return nil, fmt.Errorf("URL %s has no host", rawURL)
	}
	return parsedURL, nil
}

// HostToName derives a display name from a hostname: "www.tacobell.com"
// becomes "Tacobell". An empty host yields "Online".
func HostToName(host string) string {
	host = strings.TrimPrefix(strings.TrimSpace(host), "www.")
	base, _, _ := strings.Cut(host, ".")
	if base == "" {
		return "Online"
	}
	r, size := utf8.DecodeRuneInString(base)
	return string(unicode.ToUpper(r)) + base[size:]
}
