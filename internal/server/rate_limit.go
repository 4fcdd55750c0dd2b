package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// clientIdleTTL is how long a client's bucket survives without requests.
// A bucket idle this long has refilled completely, so dropping it is lossless.
const clientIdleTTL = 3 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter hands every client IP its own token bucket refilled at
// perMinute tokens a minute with a burst of perMinute.
type rateLimiter struct {
	perMinute int
	log       zerolog.Logger
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

func newRateLimiter(perMinute int, log zerolog.Logger) *rateLimiter {
	return &rateLimiter{
		perMinute: perMinute,
		log:       log.With().Str("component", "rate_limit").Logger(),
		now:       time.Now,
		clients:   make(map[string]*clientBucket),
	}
}

// reserve takes a token for ip. When none is available it returns false and
// how long until the next one.
func (rl *rateLimiter) reserve(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > time.Minute {
		for key, b := range rl.clients {
			if now.Sub(b.lastSeen) > clientIdleTTL {
				delete(rl.clients, key)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.clients[ip]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute),
		}
		rl.clients[ip] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// middleware rejects a client over its budget with 429. It runs after
// middleware.RealIP so RemoteAddr already carries the forwarded client address.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r.RemoteAddr)
		allowed, wait := rl.reserve(ip)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		rl.log.Warn().
			Str("ip", ip).
			Str("path", r.URL.Path).
			Int("retry_after", retryAfter).
			Msg("Client rate limited")

		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSONBody(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":       "请求过于频繁，请稍后再试",
			"retry_after": retryAfter,
		}, rl.log)
	})
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	if remoteAddr == "" {
		return "unknown"
	}
	return remoteAddr
}
