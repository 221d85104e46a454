package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderRequestID carries the request correlation ID in both directions.
	HeaderRequestID = "X-Request-ID"
	// ContextRequestID is the gin context key holding the correlation ID.
	ContextRequestID = "requestID"

	contextRequestLogger = "requestLogger"
	maxRequestIDLength   = 128
)

// RequestLogger assigns each request a correlation ID, echoes it back in
// X-Request-ID, stores a request-scoped logger for later middleware, and logs
// the outcome with the route, the campaign being addressed and the caller.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		panic("RequestLogger requires a non-nil zap.Logger instance")
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestID, requestID)
		c.Set(contextRequestLogger, logger.With(zap.String("request_id", requestID)))
		c.Header(HeaderRequestID, requestID)

		c.Next()

		statusCode := c.Writer.Status()
		logFields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status_code", statusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if route := c.FullPath(); route != "" {
			logFields = append(logFields, zap.String("route", route))
		}
		if query != "" {
			logFields = append(logFields, zap.String("query", query))
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, zap.String("gin_errors", c.Errors.String()))
		}

		reqLogger := LoggerFromContext(c, logger)
		switch {
		case statusCode >= http.StatusInternalServerError:
			reqLogger.Error("Incoming Request", logFields...)
		case statusCode >= http.StatusBadRequest:
			reqLogger.Warn("Incoming Request", logFields...)
		default:
			reqLogger.Info("Incoming Request", logFields...)
		}
	}
}

// LoggerFromContext returns the request-scoped logger, with the caller's user
// ID and the campaign ID path parameter attached when present. It falls back
// to the given logger outside RequestLogger.
func LoggerFromContext(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	l := fallback
	if v, ok := c.Get(contextRequestLogger); ok {
		if scoped, ok := v.(*zap.Logger); ok {
			l = scoped
		}
	}
	var fields []zap.Field
	if uid := c.GetString(ContextUserID); uid != "" {
		fields = append(fields, zap.String("user_id", uid))
	}
	if campaignID := c.Param("id"); campaignID != "" {
		fields = append(fields, zap.String("campaign_id", campaignID))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
