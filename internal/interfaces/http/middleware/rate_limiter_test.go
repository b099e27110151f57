package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIPResolver_Resolve(t *testing.T) {
	resolver, err := NewClientIPResolver([]string{"10.1.0.0/16", "192.168.5.5"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		resolver   *ClientIPResolver
		remoteAddr string
		forwarded  []string
		realIP     string
		want       string
	}{
		{name: "untrusted peer ignores headers", resolver: resolver, remoteAddr: "203.0.113.7:5000", forwarded: []string{"1.2.3.4"}, realIP: "5.6.7.8", want: "203.0.113.7"},
		{name: "nil resolver trusts nobody", resolver: nil, remoteAddr: "10.1.2.3:5000", forwarded: []string{"1.2.3.4"}, want: "10.1.2.3"},
		{name: "trusted peer uses forwarded client", resolver: resolver, remoteAddr: "10.1.2.3:5000", forwarded: []string{"1.2.3.4"}, want: "1.2.3.4"},
		{name: "spoofed leftmost hop is skipped", resolver: resolver, remoteAddr: "10.1.2.3:5000", forwarded: []string{"6.6.6.6, 1.2.3.4"}, want: "1.2.3.4"},
		{name: "trusted hops are walked", resolver: resolver, remoteAddr: "10.1.2.3:5000", forwarded: []string{"1.2.3.4, 192.168.5.5", "10.1.9.9"}, want: "1.2.3.4"},
		{name: "real ip fallback", resolver: resolver, remoteAddr: "192.168.5.5:80", realIP: "5.6.7.8", want: "5.6.7.8"},
		{name: "all hops trusted", resolver: resolver, remoteAddr: "10.1.2.3:5000", forwarded: []string{"10.1.4.4"}, want: "10.1.4.4"},
		{name: "no headers from proxy", resolver: resolver, remoteAddr: "10.1.2.3:5000", want: "10.1.2.3"},
		{name: "remote addr without port", resolver: resolver, remoteAddr: "203.0.113.7", want: "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.resolver.Resolve(req))
		})
	}
}

func TestNewClientIPResolver_ReportsInvalidEntries(t *testing.T) {
	resolver, err := NewClientIPResolver([]string{"10.0.0.0/8", "not-an-ip", " 172.16.0.1 "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"not-an-ip"`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "172.16.0.1:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, "198.51.100.1", resolver.Resolve(req), "valid entries still apply")
}

func TestRateLimit_KeysByResolvedClient(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1, 0)
	t.Cleanup(limiter.Stop)

	h := RateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve("198.51.100.4:1000", ""))
	assert.Equal(t, http.StatusTooManyRequests, serve("198.51.100.4:1001", "9.9.9.9"))
	assert.Equal(t, http.StatusOK, serve("198.51.100.5:1000", ""))
}
