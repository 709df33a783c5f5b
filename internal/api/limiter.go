package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"salon/internal/config"

	"golang.org/x/time/rate"
)

const (
	defaultLimiterIdle = 10 * time.Minute
	defaultBurst       = 5
)

type clientBucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// rateLimiter keeps one token bucket per client address. Buckets idle for
// longer than idleTTL are dropped.
type rateLimiter struct {
	limiters sync.Map // map[string]*clientBucket
	cfg      config.APIRateLimitConfig
	trusted  []netip.Prefix
	idleTTL  time.Duration
	now      func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	prefixes, _ := config.ParseTrustedProxies(cfg.TrustedProxies)
	return &rateLimiter{
		cfg:       cfg,
		trusted:   prefixes,
		idleTTL:   defaultLimiterIdle,
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

func (l *rateLimiter) allow(key string) bool {
	if l.cfg.RPS <= 0 {
		return true
	}
	now := l.now()
	l.sweep(now)

	b := l.bucket(key)
	b.lastSeen.Store(now.UnixNano())
	return b.lim.AllowN(now, 1)
}

func (l *rateLimiter) bucket(key string) *clientBucket {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*clientBucket)
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	b := &clientBucket{lim: rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)}
	actual, _ := l.limiters.LoadOrStore(key, b)
	return actual.(*clientBucket)
}

// sweep runs at most once per idleTTL.
func (l *rateLimiter) sweep(now time.Time) {
	l.sweepMu.Lock()
	if now.Sub(l.lastSweep) < l.idleTTL {
		l.sweepMu.Unlock()
		return
	}
	l.lastSweep = now
	l.sweepMu.Unlock()

	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.limiters.Range(func(k, v any) bool {
		if v.(*clientBucket).lastSeen.Load() < cutoff {
			l.limiters.Delete(k)
		}
		return true
	})
}

// middleware rejects clients that exceed their bucket with 429.
func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(l.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey is the peer address. X-Forwarded-For is read only when the peer
// is a trusted proxy; the key is then the rightmost hop that is not one.
func (l *rateLimiter) clientKey(r *http.Request) string {
	peer := remoteHost(r)
	if len(l.trusted) == 0 || !l.isTrusted(peer) {
		return peer
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
	}
	return peer
}

func (l *rateLimiter) isTrusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}
