package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/logger"
	"github.com/charlesng35/kiddies/pkg/response"
)

// Recovery converts panics into the generic 500 envelope. The panic value is logged, never
// returned to the client.
func Recovery() gin.HandlerFunc {
	return recoveryWith(logger.WithModule("http"))
}

func recoveryWith(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error("panic serving request",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("request_id", c.GetString(CtxRequestIDKey)),
				zap.String("user_id", c.GetString(CtxUserIDKey)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			if !c.Writer.Written() {
				response.Error(c, errors.ErrInternalServer)
			}
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithMessage(fmt.Sprintf("Route %s not found", c.Request.URL.Path)))
}
