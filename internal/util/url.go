package util

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// NormalisationError reports an href that could not be turned into a crawlable absolute URL.
// Callers skip the link; it is never fatal to a crawl.
type NormalisationError struct {
	Href   string
	Reason string
}

func (e *NormalisationError) Error() string {
	return fmt.Sprintf("cannot normalise %q: %s", e.Href, e.Reason)
}

// unsupportedPrefixes are link schemes that never point at a crawlable page
var unsupportedPrefixes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Normalise resolves a possibly relative href against base and returns the canonical absolute URL.
// Scheme and host are lower-cased and the fragment is dropped, so links to the same
// document compare equal as strings.
func Normalise(base *url.URL, href string) (*url.URL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, &NormalisationError{Href: href, Reason: "empty href"}
	}

	lower := strings.ToLower(href)
	for _, prefix := range unsupportedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return nil, &NormalisationError{Href: href, Reason: "unsupported scheme"}
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, &NormalisationError{Href: href, Reason: err.Error()}
	}

	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}

	if resolved.Scheme == "" {
		return nil, &NormalisationError{Href: href, Reason: "no scheme resolvable"}
	}

	resolved.Scheme = strings.ToLower(resolved.Scheme)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, &NormalisationError{Href: href, Reason: "unsupported scheme"}
	}

	if resolved.Host == "" {
		return nil, &NormalisationError{Href: href, Reason: "missing host"}
	}

	resolved.Host = strings.ToLower(normaliseHostPort(resolved.Host, resolved.Scheme))
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if resolved.Path == "" {
		resolved.Path = "/"
	}

	return resolved, nil
}

// ParseSeed normalises a crawl seed. Bare hosts get an https:// prefix.
func ParseSeed(rawURL string) (*url.URL, error) {
	normalised := NormaliseURL(rawURL)
	if normalised == "" {
		return nil, &NormalisationError{Href: rawURL, Reason: "invalid seed url"}
	}
	return Normalise(nil, normalised)
}

// NormaliseURL trims input and adds an https:// scheme when none is present.
// It returns "" for input that does not parse into a URL with a host.
func NormaliseURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		log.Debug().Str("url", rawURL).Err(err).Msg("Invalid URL format")
		return ""
	}

	// Ensure no duplicate schemes (like https://http://example.com)
	if strings.Contains(parsedURL.Host, "://") || strings.HasSuffix(parsedURL.Host, ":") {
		log.Debug().Str("url", rawURL).Msg("URL contains embedded scheme in host part")
		return ""
	}

	return rawURL
}

// Host returns the lower-cased host name of u without any port.
func Host(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SameDomain reports whether u belongs to the crawl's allowed domain (exact host match).
func SameDomain(u *url.URL, allowedDomain string) bool {
	return Host(u) != "" && Host(u) == strings.ToLower(allowedDomain)
}

// normaliseHostPort removes default ports (80 for HTTP, 443 for HTTPS) from host.
func normaliseHostPort(host, scheme string) string {
	if scheme == "http" && strings.HasSuffix(host, ":80") {
		return strings.TrimSuffix(host, ":80")
	}
	if scheme == "https" && strings.HasSuffix(host, ":443") {
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
