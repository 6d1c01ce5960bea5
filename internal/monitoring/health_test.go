package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/kiddies/internal/database/testutil"
	"github.com/charlesng35/kiddies/internal/monitoring"
	"github.com/charlesng35/kiddies/internal/monitoring/checks"
)

func fixed(status monitoring.ProbeStatus) func(context.Context) monitoring.ProbeResult {
	return func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: status}
	}
}

func TestReadinessWorstStatusWins(t *testing.T) {
	r := monitoring.NewReadiness(0,
		monitoring.NewCheck("a", fixed(monitoring.StatusUp)),
		monitoring.NewCheck("b", fixed(monitoring.StatusDegraded)),
	)

	report := r.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.True(t, report.Ready())
	require.Equal(t, "a", report.Checks[0].Component)
	require.Equal(t, "b", report.Checks[1].Component)

	r.Register(monitoring.NewCheck("c", fixed(monitoring.StatusDown)))
	report = r.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.False(t, report.Ready())
	require.Len(t, report.Checks, 3)
}

func TestReadinessEmptyIsUp(t *testing.T) {
	report := monitoring.NewReadiness(time.Second).Evaluate(context.Background())
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Checks)
}

func TestReadinessRecoversPanicsAndBlankStatus(t *testing.T) {
	r := monitoring.NewReadiness(0,
		monitoring.NewCheck("panics", func(context.Context) monitoring.ProbeResult { panic("boom") }),
		monitoring.NewCheck("blank", func(context.Context) monitoring.ProbeResult { return monitoring.ProbeResult{} }),
		monitoring.NewCheck("nil", nil),
	)
	r.Register(monitoring.Check{Run: fixed(monitoring.StatusUp)})

	report := r.Evaluate(context.Background())
	require.Len(t, report.Checks, 3)
	for _, result := range report.Checks {
		require.Equal(t, monitoring.StatusDown, result.Status, result.Component)
	}
	require.Equal(t, "boom", report.Checks[0].Details)
}

func TestReadinessTimesOutSlowChecks(t *testing.T) {
	r := monitoring.NewReadiness(20*time.Millisecond, monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError(ctx.Err())
	}))

	report := r.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Checks[0].Status)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestRedisCheck(t *testing.T) {
	ctx := context.Background()

	require.Equal(t, monitoring.StatusUp, checks.Redis(nil, false).Run(ctx).Status)
	require.Equal(t, monitoring.StatusDegraded, checks.Redis(nil, true).Run(ctx).Status)
	require.Equal(t, monitoring.StatusUp, checks.Redis(stubPinger{}, true).Run(ctx).Status)

	failed := checks.Redis(stubPinger{err: errors.New("refused")}, true).Run(ctx)
	require.Equal(t, monitoring.StatusDegraded, failed.Status)
	require.Equal(t, "refused", failed.Details)
}

func TestDatabaseCheckRequiresSchema(t *testing.T) {
	result := checks.Database(testutil.MustOpenTestDB(t)).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Equal(t, "schema not migrated", result.Details)
}

func TestDatabaseCheck(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	require.Equal(t, monitoring.StatusUp, checks.Database(db).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, checks.Database(nil).Run(context.Background()).Status)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	require.Equal(t, monitoring.StatusDown, checks.Database(db).Run(context.Background()).Status)
}
