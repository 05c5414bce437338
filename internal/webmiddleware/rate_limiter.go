// Package webmiddleware holds the Gin middleware the HTTP surface shares
// across resources: rate limiting. Identity/CORS middleware lives in
// internal/httpapi's middleware.go.
//
// RateLimiter here is grounded on web/middleware/rate_limiter.go's
// TokenBucket/SessionRateLimiter/RateLimitMiddleware shape, generalized from
// a cookie-session key (uuid.UUID sessionID) to the string user id this
// repo's JWT identity already carries on the Gin context.
package webmiddleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiterConfig mirrors the teacher's RateLimiterConfig.
type RateLimiterConfig struct {
	MessagesPerMinute int
	FilesPerHour      int
	BurstSize         int
	CleanupInterval   time.Duration
}

// TokenBucket is an unchanged port of the teacher's token-bucket limiter.
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket constructs a bucket starting full.
func NewTokenBucket(maxTokens, refillRate float64) *TokenBucket {
	return &TokenBucket{tokens: maxTokens, maxTokens: maxTokens, refillRate: refillRate, lastRefill: time.Now()}
}

// Allow reports whether a request may proceed, consuming a token if so.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// Remaining reports the current token count, refilled to now.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	return int(min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate))
}

// SessionRateLimiter tracks one TokenBucket per user per limit kind.
type SessionRateLimiter struct {
	config        RateLimiterConfig
	messageLimits map[string]*TokenBucket
	fileLimits    map[string]*TokenBucket
	mu            sync.RWMutex
	logger        *zap.Logger
	stopCleanup   chan struct{}
}

// NewSessionRateLimiter constructs a limiter and starts its cleanup loop.
func NewSessionRateLimiter(config RateLimiterConfig, logger *zap.Logger) *SessionRateLimiter {
	l := &SessionRateLimiter{
		config: config, messageLimits: make(map[string]*TokenBucket),
		fileLimits: make(map[string]*TokenBucket), logger: logger, stopCleanup: make(chan struct{}),
	}
	go l.cleanupRoutine()
	return l
}

func (srl *SessionRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(srl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			srl.cleanup()
		case <-srl.stopCleanup:
			return
		}
	}
}

func (srl *SessionRateLimiter) cleanup() {
	srl.mu.Lock()
	defer srl.mu.Unlock()
	if len(srl.messageLimits) > 1000 {
		srl.messageLimits = make(map[string]*TokenBucket)
	}
	if len(srl.fileLimits) > 1000 {
		srl.fileLimits = make(map[string]*TokenBucket)
	}
}

// Stop ends the cleanup goroutine.
func (srl *SessionRateLimiter) Stop() { close(srl.stopCleanup) }

// AllowMessage checks the message-per-minute bucket for userID.
func (srl *SessionRateLimiter) AllowMessage(userID string) bool {
	srl.mu.Lock()
	bucket, ok := srl.messageLimits[userID]
	if !ok {
		bucket = NewTokenBucket(float64(srl.config.BurstSize), float64(srl.config.MessagesPerMinute)/60.0)
		srl.messageLimits[userID] = bucket
	}
	srl.mu.Unlock()
	return bucket.Allow()
}

// AllowFile checks the files-per-hour bucket for userID.
func (srl *SessionRateLimiter) AllowFile(userID string) bool {
	srl.mu.Lock()
	bucket, ok := srl.fileLimits[userID]
	if !ok {
		bucket = NewTokenBucket(float64(srl.config.FilesPerHour), float64(srl.config.FilesPerHour)/3600.0)
		srl.fileLimits[userID] = bucket
	}
	srl.mu.Unlock()
	return bucket.Allow()
}

// RateLimit builds the Gin middleware for "message" or "file" limit kinds,
// reading the authenticated user id stashed on the context by the auth
// middleware.
func RateLimit(limiter *SessionRateLimiter, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDValue, exists := c.Get("userID")
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "identity not initialized"})
			return
		}
		userID := userIDValue.(string)

		var allowed bool
		switch kind {
		case "message":
			allowed = limiter.AllowMessage(userID)
		case "file":
			allowed = limiter.AllowFile(userID)
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown limit type"})
			return
		}

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "retry_after": 60})
			return
		}
		c.Next()
	}
}

func formatInt(n int) string { return strconv.Itoa(n) }
