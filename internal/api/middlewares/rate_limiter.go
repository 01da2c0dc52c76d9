package middlewares

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"chainvault/pkg/utils"

	"golang.org/x/time/rate"
)

const (
	visitorTTL    = 5 * time.Minute
	sweepInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles each client to a number of requests per minute.
type RateLimiter struct {
	perMinute int
	burst     int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		perMinute: perMinute,
		burst:     burst,
		visitors:  make(map[string]*visitor),
		now:       time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiterFor(clientID(r)).Allow() {
			utils.WriteError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) limiterFor(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		l.evictIdle(now)
		l.lastSweep = now
	}

	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst)}
		l.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter
}

// evictIdle drops visitors not seen for visitorTTL. Callers hold l.mu.
func (l *RateLimiter) evictIdle(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

func clientID(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if parsed := net.ParseIP(strings.TrimSpace(first)); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
