package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kodexa-lms/commerce-api/utils/cache"
	"github.com/kodexa-lms/commerce-api/utils/response"
)

// CouponApplyLimiter throttles coupon-apply attempts per IP so the advisory
// pricing endpoint cannot be used to enumerate codes. Limits live in Redis;
// when Redis is unavailable requests pass through rather than blocking
// legitimate checkouts.
type CouponApplyLimiter struct {
	redisCache  *cache.RedisCache
	maxAttempts int64
	window      time.Duration
	lockout     time.Duration
}

// NewCouponApplyLimiter creates a limiter with sensible defaults: 20
// attempts per 10 minute window, 30 minute lockout.
func NewCouponApplyLimiter(redisCache *cache.RedisCache) *CouponApplyLimiter {
	return &CouponApplyLimiter{
		redisCache:  redisCache,
		maxAttempts: 20,
		window:      10 * time.Minute,
		lockout:     30 * time.Minute,
	}
}

// Limit is the middleware handler
func (l *CouponApplyLimiter) Limit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.Context()
		ip := c.IP()
		lockKey := fmt.Sprintf("coupon_apply:lock:%s", ip)
		attemptKey := fmt.Sprintf("coupon_apply:attempts:%s", ip)

		if _, err := l.redisCache.Get(ctx, lockKey); err == nil {
			ttl, _ := l.redisCache.TTL(ctx, lockKey)
			retryAfter := int(ttl.Seconds())
			if retryAfter < 0 {
				retryAfter = 60
			}
			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many coupon attempts. Try again in %d seconds", retryAfter))
		}

		attempts, err := l.redisCache.Increment(ctx, attemptKey)
		if err != nil {
			// Redis down: let the request through
			return c.Next()
		}
		if attempts == 1 {
			l.redisCache.Expire(ctx, attemptKey, l.window)
		}
		if attempts > l.maxAttempts {
			l.redisCache.Set(ctx, lockKey, "locked", l.lockout)
			return response.TooManyRequests(c, "Too many coupon attempts")
		}

		return c.Next()
	}
}
