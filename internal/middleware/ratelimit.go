package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Clinteastman/heartlib/pkg/response"
)

// RateLimiter is a Redis-backed fixed-window limiter. It fails open: when
// Redis is unreachable the request is allowed.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware keyed by user id, falling back
// to the client IP when the request is unauthenticated.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := GetUserID(c)
		if caller == "" {
			caller = c.IP()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, caller)
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			return c.Next()
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))
		return c.Next()
	}
}

// LyricsLimit limits lyrics drafting requests per minute
func (rl *RateLimiter) LyricsLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("lyrics", maxPerMin, time.Minute)
}

// GenerateLimit limits generation starts per hour
func (rl *RateLimiter) GenerateLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("generate", maxPerHour, time.Hour)
}
