package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salon/internal/config"

	"github.com/stretchr/testify/assert"
)

func bucketCount(l *rateLimiter) int {
	n := 0
	l.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 0.001, Burst: 1})
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l.now = func() time.Time { return now }
	l.lastSweep = start

	assert.True(t, l.allow("198.51.100.1"))
	assert.True(t, l.allow("198.51.100.2"))
	assert.False(t, l.allow("198.51.100.1"))
	assert.Equal(t, 2, bucketCount(l))

	now = start.Add(5 * time.Minute)
	assert.True(t, l.allow("198.51.100.3"))
	assert.Equal(t, 3, bucketCount(l))

	now = start.Add(defaultLimiterIdle + time.Minute)
	assert.True(t, l.allow("198.51.100.4"))
	// 3 was seen within the idle window and survives
	assert.Equal(t, 2, bucketCount(l))
}

func TestRateLimiter_ClientKey(t *testing.T) {
	plain := newRateLimiter(config.APIRateLimitConfig{RPS: 1})
	behindProxy := newRateLimiter(config.APIRateLimitConfig{RPS: 1, TrustedProxies: []string{"10.0.0.1", "fd00::/8"}})

	req := func(remote, xff string) *http.Request {
		r := httptest.NewRequest("GET", "/api/services/", nil)
		r.RemoteAddr = remote
		if xff != "" {
			r.Header.Set("X-Forwarded-For", xff)
		}
		return r
	}

	assert.Equal(t, "203.0.113.9", plain.clientKey(req("203.0.113.9:1000", "1.1.1.1")))
	assert.Equal(t, "1.1.1.1", behindProxy.clientKey(req("10.0.0.1:1000", "1.1.1.1")))
	assert.Equal(t, "10.0.0.7", behindProxy.clientKey(req("10.0.0.7:1000", "1.1.1.1")))
	assert.Equal(t, "2001:db8::1", behindProxy.clientKey(req("[fd00::5]:1000", "2001:db8::1")))
	assert.Equal(t, "10.0.0.1", behindProxy.clientKey(req("10.0.0.1:1000", "")))
	assert.Equal(t, "unknown", plain.clientKey(req("garbage", "")))
}
