package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/monitoring"
	appErrors "github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/response"
)

// Health returns a simple status payload useful for readiness checks.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := database.Ping(db); err != nil {
			response.Error(c, appErrors.ErrDependency.WithMessage("Database unavailable").WithInternal(err))
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// Readiness evaluates the dependency probes. It answers 503 with the report when any is down.
func Readiness(readiness *monitoring.Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := readiness.Evaluate(requestContext(c))
		if !report.Ready() {
			response.ErrorWithData(c, appErrors.ErrDependency.WithMessage("Service not ready"), report)
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}
