package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"localmart/internal/redis"
	"localmart/internal/transport/httpdto"
)

// BookingRateLimitMiddleware limits booking mutations per user. Applied after
// auth middleware; a Redis failure lets the request through rather than
// blocking the primary action.
func BookingRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserIDFrom(c)
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.AllowBookingAction(c.Request.Context(), userID.String())
		if err != nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(int(result.ResetIn.Seconds())))
}
