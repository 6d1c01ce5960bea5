package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/handlers"
	"github.com/charlesng35/kiddies/internal/middleware"
	"github.com/charlesng35/kiddies/internal/monitoring"
)

type publicRouteDeps struct {
	DB        *gorm.DB
	Readiness *monitoring.Readiness
	Setup     *handlers.SetupHandler
}

// registerPublicRoutes mounts the unauthenticated probes, the setup status used by the first
// visit to the frontend, and the Prometheus exporter.
func registerPublicRoutes(r *gin.Engine, deps publicRouteDeps) {
	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/health/ready", handlers.Readiness(deps.Readiness))
	r.GET("/api/setup/status", deps.Setup.Status)
	r.GET(middleware.MetricsPath, gin.WrapH(promhttp.Handler()))
}
