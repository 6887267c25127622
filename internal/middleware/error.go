package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "solconta/internal/errors"
	"solconta/internal/logger"
)

// ErrorHandler turns the last error recorded on the context into the
// {"error":{"code","message"}} envelope. Anything that is not an AppError is
// logged and answered as INTERNAL_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		log := logger.Get().With(
			"request_id", RequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			log.Errorw("unexpected error", "error", err.Error())
			appErr = apperrors.ErrInternalServer
		} else if appErr.Internal != nil || appErr.StatusCode >= http.StatusInternalServerError {
			fields := []any{"code", appErr.Code, "message", appErr.Message}
			if appErr.Internal != nil {
				fields = append(fields, "internal", appErr.Internal.Error())
			}
			log.Errorw("app error", fields...)
		}

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}
