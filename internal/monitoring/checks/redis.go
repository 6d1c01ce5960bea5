package checks

import (
	"context"

	"github.com/charlesng35/kiddies/internal/monitoring"
)

// Pinger is the part of a cache client the probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Redis probes the shared cache. A disabled cache is up; an enabled but unreachable one is
// degraded because rate limiting falls back to the database.
func Redis(client Pinger, enabled bool) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		if !enabled {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		}
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable; using database counters"}
		}
		result := monitoring.ResultFromError(client.Ping(ctx))
		if result.Status == monitoring.StatusDown {
			result.Status = monitoring.StatusDegraded
		}
		return result
	})
}
