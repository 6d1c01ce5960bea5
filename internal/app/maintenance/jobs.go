package maintenance

import (
	"context"
	"time"
)

// ExpiredPurger deletes entries that expired at or before now.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// CachePurgeJob removes expired rows from the SQL cache table.
func CachePurgeJob(p ExpiredPurger, spec string) Job {
	return Job{Name: "cache_purge", Spec: spec, Run: p.PurgeExpired}
}
