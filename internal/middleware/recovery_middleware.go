package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a panic in a handler into a logged 500 response.
// The response carries the request ID so a report can be matched to the log.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		panic("RecoveryMiddleware requires a non-nil zap.Logger instance")
	}
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				LoggerFromContext(c, logger).Error("Panic recovered",
					zap.Any("error", err),
					zap.String("stacktrace", string(debug.Stack())),
					zap.String("route", c.FullPath()),
					zap.String("method", c.Request.Method),
				)
				if !c.Writer.Written() {
					details := "The server encountered an unexpected condition which prevented it from fulfilling the request."
					if requestID := c.GetString(ContextRequestID); requestID != "" {
						details = fmt.Sprintf("%s Reference: %s.", details, requestID)
					}
					c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error", Details: details})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
