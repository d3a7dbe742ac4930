package util

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestNormalise(t *testing.T) {
	base := mustParse(t, "https://example.com/blog/post/index.html")

	tests := []struct {
		name     string
		href     string
		expected string
	}{
		{"absolute", "https://example.com/a", "https://example.com/a"},
		{"root_relative", "/a", "https://example.com/a"},
		{"directory_relative", "other.html", "https://example.com/blog/post/other.html"},
		{"parent_relative", "../list", "https://example.com/blog/list"},
		{"query_only", "?page=2", "https://example.com/blog/post/index.html?page=2"},
		{"fragment_dropped", "/a#section", "https://example.com/a"},
		{"bare_fragment", "#top", "https://example.com/blog/post/index.html"},
		{"protocol_relative", "//cdn.example.com/x", "https://cdn.example.com/x"},
		{"uppercase_host", "HTTPS://EXAMPLE.COM/Path", "https://example.com/Path"},
		{"default_port_removed", "https://example.com:443/a", "https://example.com/a"},
		{"non_default_port_kept", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"empty_path_becomes_root", "https://other.com", "https://other.com/"},
		{"surrounding_whitespace", "  /a  ", "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalise(base, tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestNormaliseRejectsUncrawlableLinks(t *testing.T) {
	base := mustParse(t, "https://example.com/")

	tests := []struct {
		name string
		href string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"javascript", "javascript:void(0)"},
		{"mailto", "mailto:someone@example.com"},
		{"tel", "tel:+61000000"},
		{"data", "data:text/plain,hi"},
		{"ftp", "ftp://example.com/file"},
		{"malformed", "http://[::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalise(base, tt.href)
			assert.Nil(t, got)
			var normErr *NormalisationError
			assert.True(t, errors.As(err, &normErr), "expected NormalisationError, got %v", err)
		})
	}
}

func TestNormaliseWithoutBase(t *testing.T) {
	_, err := Normalise(nil, "/relative")
	assert.Error(t, err)

	got, err := Normalise(nil, "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", got.String())
}

func TestNormaliseIsIdempotent(t *testing.T) {
	base := mustParse(t, "https://example.com/dir/")
	for _, href := range []string{"/a", "b?c=d", "https://EXAMPLE.com:443/x#y"} {
		first, err := Normalise(base, href)
		require.NoError(t, err)
		second, err := Normalise(base, first.String())
		require.NoError(t, err)
		assert.Equal(t, first.String(), second.String())
	}
}

func TestParseSeed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"full_https", "https://example.com/", "https://example.com/", false},
		{"http_kept", "http://example.com/start", "http://example.com/start", false},
		{"bare_host", "example.com", "https://example.com/", false},
		{"bare_host_with_path", "example.com/blog", "https://example.com/blog", false},
		{"empty", "", "", true},
		{"embedded_scheme", "https://http://example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeed(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestHostAndSameDomain(t *testing.T) {
	u := mustParse(t, "https://Example.com:8443/a")
	assert.Equal(t, "example.com", Host(u))
	assert.True(t, SameDomain(u, "example.com"))
	assert.True(t, SameDomain(u, "EXAMPLE.COM"))
	assert.False(t, SameDomain(u, "www.example.com"))
	assert.False(t, SameDomain(mustParse(t, "https://other.com/x"), "example.com"))
	assert.False(t, SameDomain(nil, "example.com"))
	assert.Equal(t, "", Host(nil))
}

func BenchmarkNormalise(b *testing.B) {
	base, _ := url.Parse("https://www.example.com/blog/")
	for i := 0; i < b.N; i++ {
		_, _ = Normalise(base, "../path/to/page?q=test#section")
	}
}
