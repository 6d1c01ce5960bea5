package checks

import (
	"context"

	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/internal/monitoring"
)

// Database pings the pool behind db and confirms the census tables were migrated.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}
		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return monitoring.ResultFromError(err)
		}

		migrator := db.WithContext(ctx).Migrator()
		for _, table := range []interface{}{&models.User{}, &models.Census{}} {
			if !migrator.HasTable(table) {
				return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "schema not migrated"}
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}
