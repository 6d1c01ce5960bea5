package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/handlers"
)

func registerCensusRoutes(api *gin.RouterGroup, handler *handlers.CensusHandler, requireAuth gin.HandlerFunc) {
	census := api.Group("/census", requireAuth)
	{
		census.GET("/stats", handler.Stats)
		census.POST("", handler.Create)
		census.GET("/dates", handler.Dates)
		census.GET("/date", handler.ByDate)
		census.GET("/report", handler.Report)
	}
}
