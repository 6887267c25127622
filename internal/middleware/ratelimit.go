package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "solconta/internal/errors"
	"solconta/internal/ratelimit"
)

// RateLimit throttles requests per client IP. Rejected requests get a 429
// with a Retry-After header and the wait in the error message.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := limiter.Allow("ip:" + c.ClientIP())
		if ok {
			c.Next()
			return
		}

		seconds := ratelimit.RetrySeconds(wait)
		appErr := apperrors.RateLimited(seconds)
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}
