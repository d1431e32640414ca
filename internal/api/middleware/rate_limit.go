package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/config"
)

const (
	LimitAPIRead  = "api_read"
	LimitAPIWrite = "api_write"
	LimitEvents   = "events"
)

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
	mu         sync.Mutex
}

// RateLimiter is a per-key token bucket refilled continuously over a
// minute. Call Stop to end the cleanup goroutine.
type RateLimiter struct {
	store  sync.Map // map[string]*bucket
	limits map[string]int
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		limits: map[string]int{
			LimitAPIRead:  orDefault(cfg.APIReadPerMinute, 1000),
			LimitAPIWrite: orDefault(cfg.APIWritePerMinute, 100),
			LimitEvents:   orDefault(cfg.EventsPerMinute, 600),
		},
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go rl.cleanupLoop(10 * time.Minute)

	return rl
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop(idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.store.Range(func(key, value interface{}) bool {
				b := value.(*bucket)
				b.mu.Lock()
				if now.Sub(b.lastAccess) > idle {
					rl.store.Delete(key)
				}
				b.mu.Unlock()
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) Allow(key string, limit int) bool {
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now

	refillRate := float64(limit) / 60.0
	refillTokens := int(now.Sub(b.lastRefill).Seconds() * refillRate)
	if refillTokens > 0 {
		b.tokens += refillTokens
		if b.tokens > limit {
			b.tokens = limit
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Limit keys requests by tenant when one is known, by client IP otherwise.
func (rl *RateLimiter) Limit(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	limit, ok := rl.limits[limitType]
	if !ok {
		limit = 100
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var key string
			if tenant := Tenant(r.Context()); tenant != nil {
				key = fmt.Sprintf("%s:%s", tenant.OrgID, limitType)
			} else {
				key = fmt.Sprintf("%s:%s", RemoteIP(r), limitType)
			}

			if !rl.Allow(key, limit) {
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}
