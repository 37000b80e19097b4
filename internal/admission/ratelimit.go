package admission

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/owlhq/owl-gateway/internal/shard"
)

// RateLimitResult is the outcome of a single RateLimiter.Check call.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	Limit      int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimitStats is a point-in-time snapshot of a RateLimiter's counters.
type RateLimitStats struct {
	TotalRequests   int64
	AllowedRequests int64
	BlockedRequests int64
	TrackedIPs      int
	MaxTrackedIPs   int
}

type bucket struct {
	limiter  *rate.Limiter
	cap      int
	lastSeen time.Time
}

// RateLimiter implements a per-IP token bucket. Each IP gets its own
// golang.org/x/time/rate.Limiter (lazy refill is exactly what rate.Limiter
// already does), sharded across internal/shard.Map to keep per-IP
// contention low under a high cardinality of distinct clients.
type RateLimiter struct {
	enabled bool
	qps     float64
	cap     int
	window  time.Duration

	buckets *shard.Map[string, *bucket]

	mu      sync.Mutex
	total   int64
	allowed int64
	blocked int64
	maxSeen int
}

// NewRateLimiter builds a limiter allowing requestsPerWindow over
// windowSeconds with the given burst.
func NewRateLimiter(enabled bool, requestsPerWindow, windowSeconds, burst int) *RateLimiter {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	qps := float64(requestsPerWindow) / float64(windowSeconds)
	return &RateLimiter{
		enabled: enabled,
		qps:     qps,
		cap:     requestsPerWindow + burst,
		window:  time.Duration(windowSeconds) * time.Second,
		buckets: shard.New[string, *bucket](32),
	}
}

// Check evaluates and, if allowed, consumes one token for ip.
func (rl *RateLimiter) Check(ip string) RateLimitResult {
	rl.mu.Lock()
	rl.total++
	rl.mu.Unlock()

	if !rl.enabled {
		rl.mu.Lock()
		rl.allowed++
		rl.mu.Unlock()
		return RateLimitResult{Allowed: true, Remaining: rl.cap, Limit: rl.cap}
	}

	b := rl.buckets.GetOrCreate(ip, func() *bucket {
		return &bucket{limiter: rate.NewLimiter(rate.Limit(rl.qps), rl.cap), cap: rl.cap}
	})
	b.lastSeen = time.Now()

	reservation := b.limiter.ReserveN(time.Now(), 1)
	if !reservation.OK() {
		rl.mu.Lock()
		rl.blocked++
		rl.mu.Unlock()
		return RateLimitResult{Allowed: false, Limit: rl.cap}
	}
	delay := reservation.Delay()
	if delay > 0 {
		reservation.Cancel()
		rl.mu.Lock()
		rl.blocked++
		rl.mu.Unlock()
		return RateLimitResult{Allowed: false, Limit: rl.cap, RetryAfter: delay, ResetAt: time.Now().Add(delay)}
	}

	rl.mu.Lock()
	rl.allowed++
	if n := rl.buckets.Len(); n > rl.maxSeen {
		rl.maxSeen = n
	}
	rl.mu.Unlock()

	remaining := int(b.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitResult{Allowed: true, Remaining: remaining, Limit: rl.cap}
}

// Sweep evicts buckets untouched for more than one window, so the map
// doesn't grow without bound under a steady stream of distinct clients.
func (rl *RateLimiter) Sweep() int {
	cutoff := time.Now().Add(-rl.window)
	return rl.buckets.DeleteWhere(func(_ string, b *bucket) bool {
		return b.lastSeen.Before(cutoff)
	})
}

func (rl *RateLimiter) StatsSnapshot() any {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return RateLimitStats{
		TotalRequests:   rl.total,
		AllowedRequests: rl.allowed,
		BlockedRequests: rl.blocked,
		TrackedIPs:      rl.buckets.Len(),
		MaxTrackedIPs:   rl.maxSeen,
	}
}

// ApplyHeaders sets the 429 response's Retry-After header when res denies
// the request.
func ApplyHeaders(hdr http.Header, res RateLimitResult) {
	if !res.Allowed && res.RetryAfter > 0 {
		hdr.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds()+0.999)))
	}
}

// ExtractIP returns the caller's address, preferring the first hop of
// X-Forwarded-For when present.
func ExtractIP(headers http.Header, remoteAddr string) string {
	if xff := headers.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.SplitN(xff, ",", 2); len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	return remoteAddr
}
