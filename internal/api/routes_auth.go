package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/handlers"
	"github.com/charlesng35/kiddies/internal/middleware"
)

type authRouteDeps struct {
	Handler     *handlers.AuthHandler
	RequireAuth gin.HandlerFunc
	Throttle    gin.HandlerFunc
}

func registerAuthRoutes(api *gin.RouterGroup, deps authRouteDeps) {
	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.Throttle, deps.Handler.Login)
		auth.POST("/register", deps.Throttle, deps.Handler.Register)
		auth.GET("/verify-invite", deps.Handler.VerifyInvite)
	}

	authed := auth.Group("", deps.RequireAuth)
	{
		authed.GET("/profile", deps.Handler.Profile)
		authed.PUT("/profile", deps.Handler.UpdateProfile)
		authed.POST("/invite", middleware.RequireAdmin(), deps.Handler.Invite)
		authed.GET("/users", middleware.RequireAdmin(), deps.Handler.Users)
	}
}
