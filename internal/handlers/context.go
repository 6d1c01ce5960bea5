package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/middleware"
	"github.com/charlesng35/kiddies/internal/models"
)

// requestContext is the context services run under. It is cancelled when the
// client goes away.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// currentUser returns the account attached by middleware.Auth.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, _ := c.Value(middleware.CtxUserKey).(*models.User)
	return user, user != nil
}
