package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"dasa-hub/internal/api/response"
)

type slidingWindowCounter struct {
	mu         sync.Mutex
	timestamps []int64
}

// RateLimiter is a per-key sliding window held in process memory.
type RateLimiter struct {
	limit  int
	window time.Duration
	store  sync.Map
	now    func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{limit: limit, window: window, now: time.Now}
}

// Allow records a hit for key and reports whether it fits the window.
func (l *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "global"
	}

	entryAny, _ := l.store.LoadOrStore(key, &slidingWindowCounter{
		timestamps: make([]int64, 0, l.limit),
	})
	entry := entryAny.(*slidingWindowCounter)

	now := l.now().UnixNano()
	cutoff := now - l.window.Nanoseconds()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	next := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts > cutoff {
			next = append(next, ts)
		}
	}
	entry.timestamps = next

	if len(entry.timestamps) >= l.limit {
		return false
	}
	entry.timestamps = append(entry.timestamps, now)
	return true
}

// RateLimit keys by template: "ip", "user_id", or a string containing
// {ip} and {user_id} placeholders.
func RateLimit(key string, limit int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(limit, window)
	return func(c *gin.Context) {
		if !limiter.Allow(resolveRateLimitKey(c, key)) {
			response.Fail(c, 429, response.ErrTooManyRequests, "too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}

func resolveRateLimitKey(c *gin.Context, keyTemplate string) string {
	userID := ""
	if claims, ok := GetClaims(c); ok {
		userID = claims.UserID
	}

	if keyTemplate == "" {
		keyTemplate = "ip"
	}

	switch keyTemplate {
	case "ip":
		return "ip:" + c.ClientIP()
	case "user_id":
		if userID == "" {
			return "user_id:anonymous:" + c.ClientIP()
		}
		return "user_id:" + userID
	default:
		replaced := strings.ReplaceAll(keyTemplate, "{ip}", c.ClientIP())
		replaced = strings.ReplaceAll(replaced, "{user_id}", userID)
		return replaced
	}
}
