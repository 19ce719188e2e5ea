package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/stylebot/server/internal/shared/errors"
	"go.uber.org/zap"
)

// Recovery returns a middleware that turns handler panics into 500 responses.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))
				appErr := apperrors.Internal("internal server error", nil)
				c.AbortWithStatusJSON(http.StatusInternalServerError, appErr.ToResponse())
			}
		}()
		c.Next()
	}
}
