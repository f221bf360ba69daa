package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "http://Example.COM", want: "http://example.com", ok: true},
		{input: "HTTPS://example.com:8443/path", want: "https://example.com:8443", ok: true},
		{input: "not-a-url", ok: false},
		{input: "http://", ok: false},
		{input: "ftp://files.example.com", ok: false},
		{input: "javascript:alert(1)", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := normalizeOrigin(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOriginPolicy(t *testing.T) {
	request := func(origin string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		return req
	}

	t.Run("allowlist", func(t *testing.T) {
		p := newOriginPolicy([]string{"http://example.com", "bogus", ""}, quietLogger())

		assert.True(t, p.checkOrigin(request("http://EXAMPLE.com")))
		assert.True(t, p.checkOrigin(request("http://example.com/some/path")))
		assert.False(t, p.checkOrigin(request("https://example.com")))
		assert.False(t, p.checkOrigin(request("http://example.com:9090")))
		assert.False(t, p.checkOrigin(request("")))
		assert.Len(t, p.allowed, 1)
	})

	t.Run("wildcard", func(t *testing.T) {
		p := newOriginPolicy([]string{"*"}, quietLogger())

		assert.True(t, p.checkOrigin(request("https://anything.example")))
		assert.False(t, p.checkOrigin(request("not-a-url")))
		assert.False(t, p.checkOrigin(request("")))
	})

	t.Run("empty", func(t *testing.T) {
		p := newOriginPolicy(nil, quietLogger())
		assert.False(t, p.checkOrigin(request("http://localhost:8080")))
	})
}
