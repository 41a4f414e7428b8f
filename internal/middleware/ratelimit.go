package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/premiumpay/premium-pay-api/internal/apperror"
	"github.com/premiumpay/premium-pay-api/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter counts requests per client IP in fixed windows stored in Redis.
// Without a Redis client, a positive limit and a positive window every
// request is allowed.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	log    logrus.FieldLogger
}

func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: limit, window: window, log: log}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.rdb == nil || r.limit <= 0 || r.window <= 0 {
			c.Next()
			return
		}

		slot := time.Now().UnixNano() / int64(r.window)
		key := fmt.Sprintf("rate_limit:ip:%s:%d", c.ClientIP(), slot)

		ctx := c.Request.Context()
		var incr *redis.IntCmd
		_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, r.window)
			return nil
		})
		if err != nil {
			// Fail open when Redis is unreachable.
			r.log.WithError(err).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		count := incr.Val()
		remaining := int64(r.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(r.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(r.limit) {
			response.Error(c, apperror.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
