package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/charlesng35/kiddies/pkg/logger"
)

// Logger writes one structured access log entry per request.
func Logger() gin.HandlerFunc {
	return loggerWith(logger.WithModule("http"))
}

func loggerWith(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := accessLevel(c.Request.URL.Path, status)
		ce := log.Check(level, "request")
		if ce == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if requestID := c.GetString(CtxRequestIDKey); requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}
		if userID := c.GetString(CtxUserIDKey); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, zap.Strings("errors", errs.Errors()))
		}
		ce.Write(fields...)
	}
}

// Probes and scrapes are only logged at debug level unless they fail.
func accessLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	case path == MetricsPath || strings.HasPrefix(path, "/health"):
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
