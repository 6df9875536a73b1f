package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Window is the time window for rate limiting
	Window time.Duration
	// Limit is the maximum number of requests allowed in the window
	Limit int
	// Key prefix for Redis keys
	KeyPrefix string
	// MaxKeys bounds how many callers the in-process limiter tracks; zero uses DefaultLimiterKeys
	MaxKeys int
}

// DefaultLimiterKeys is the number of callers a LocalLimiter tracks by default
const DefaultLimiterKeys = 10000

// Decision is the answer of a Limiter for one request
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter decides whether the caller identified by key may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter is a fixed-window limiter shared by every instance through Redis
type RedisLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	now    func() time.Time
}

// NewRedisLimiter creates a new rate limiter instance
func NewRedisLimiter(redisClient *redis.Client, config RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{redis: redisClient, config: config, now: time.Now}
}

func (rl *RedisLimiter) windowKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, key, windowStart.Unix())
}

// Allow counts the request in the current window
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	windowStart := rl.now().Truncate(rl.config.Window)
	redisKey := rl.windowKey(key, windowStart)

	// Use Redis pipeline for atomic operations
	pipe := rl.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	count := int(incrCmd.Val())
	return Decision{
		Allowed:   count <= rl.config.Limit,
		Remaining: max(rl.config.Limit-count, 0),
		Reset:     windowStart.Add(rl.config.Window),
	}, nil
}

// LocalLimiter is an in-process token bucket per key, used without Redis.
// The least recently seen caller is forgotten once MaxKeys callers are tracked.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	config   RateLimitConfig
	every    rate.Limit
}

// NewLocalLimiter allows config.Limit requests per config.Window with bursts up to Limit
func NewLocalLimiter(config RateLimitConfig) *LocalLimiter {
	if config.MaxKeys <= 0 {
		config.MaxKeys = DefaultLimiterKeys
	}
	limiters, _ := lru.New[string, *rate.Limiter](config.MaxKeys)
	return &LocalLimiter{
		limiters: limiters,
		config:   config,
		every:    rate.Every(config.Window / time.Duration(max(config.Limit, 1))),
	}
}

func (rl *LocalLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters.Get(key)
	if !exists {
		limiter = rate.NewLimiter(rl.every, rl.config.Limit)
		rl.limiters.Add(key, limiter)
	}
	return limiter
}

func (rl *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	limiter := rl.limiter(key)
	now := time.Now()
	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)
	d := Decision{Allowed: allowed, Remaining: max(int(tokens), 0), Reset: now}
	if tokens < float64(rl.config.Limit) {
		missing := float64(rl.config.Limit) - tokens
		d.Reset = now.Add(time.Duration(missing / float64(rl.every) * float64(time.Second)))
	}
	return d, nil
}

// RateLimit limits requests per authenticated user, or per client IP for anonymous callers.
// A failing limiter lets the request through.
func RateLimit(limiter Limiter, limit int, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := c.Get(UserIDKey); ok {
			key = fmt.Sprintf("user:%v", userID)
		}

		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.Header("X-RateLimit-Error", "rate limit check failed")
			c.Next()
			return
		}

		// Set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			retry := max(int(time.Until(d.Reset).Seconds()), 1)
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "rate limit exceeded",
				"retry_after": retry,
			})
			return
		}

		c.Next()
	}
}
