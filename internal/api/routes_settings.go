package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/handlers"
	"github.com/charlesng35/kiddies/internal/middleware"
)

func registerSettingsRoutes(api *gin.RouterGroup, handler *handlers.SettingsHandler, requireAuth gin.HandlerFunc) {
	settings := api.Group("/settings")
	requireAdmin := middleware.RequireAdmin()

	// Motto and logo render on the login screen.
	settings.GET("/motto", handler.Motto)
	settings.GET("/logo", handler.Logo)

	settings.GET("/services", requireAuth, handler.Services)
	settings.PUT("/services", requireAuth, requireAdmin, handler.UpdateServices)
	settings.PUT("/motto", requireAuth, requireAdmin, handler.UpdateMotto)
	settings.PUT("/logo", requireAuth, requireAdmin, handler.UpdateLogo)

	settings.GET("/:key", requireAuth, requireAdmin, handler.Get)
	settings.PUT("/:key", requireAuth, requireAdmin, handler.Put)
}
