package httpx

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware enforces a per-IP budget of maxRequests per window
// and rejects blocked IPs outright.
type RateLimitMiddleware struct {
	limiters    map[string]*rateLimiter
	mu          sync.Mutex
	rate        rate.Limit
	burst       int
	maxRequests int
	window      time.Duration
	blocked     map[string]bool
	cleanup     time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewRateLimitMiddleware(maxRequests int, window time.Duration, blockedIPs []string) *RateLimitMiddleware {
	blocked := make(map[string]bool, len(blockedIPs))
	for _, ip := range blockedIPs {
		blocked[ip] = true
	}

	rl := &RateLimitMiddleware{
		limiters:    make(map[string]*rateLimiter),
		rate:        rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:       maxRequests,
		maxRequests: maxRequests,
		window:      window,
		blocked:     blocked,
		cleanup:     window,
		stop:        make(chan struct{}),
	}

	go rl.cleanupLimiters()
	return rl
}

// Stop ends the background cleanup loop.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimitMiddleware) cleanupLimiters() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for key, limiter := range rl.limiters {
			if time.Since(limiter.lastSeen) > rl.cleanup {
				delete(rl.limiters, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimitMiddleware) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = &rateLimiter{
			limiter:  rate.NewLimiter(rl.rate, rl.burst),
			lastSeen: time.Now(),
		}
		rl.limiters[key] = limiter
	} else {
		limiter.lastSeen = time.Now()
	}

	return limiter.limiter
}

func (rl *RateLimitMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if rl.blocked[ip] {
			JSON(w, http.StatusForbidden, DeniedResponse{
				Error:  "ACCESS_DENIED",
				Detail: "Your IP address has been blocked due to suspicious activity.",
			})
			return
		}

		reservation := rl.getLimiter(ip).Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			JSON(w, http.StatusTooManyRequests, DeniedResponse{
				Error: "RATE_LIMIT_EXCEEDED",
				Detail: fmt.Sprintf("Too many requests detected from your IP address. Please wait before retrying. Rate limit: %d requests per %s.",
					rl.maxRequests, rl.window),
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware runs
// first and has already applied X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
