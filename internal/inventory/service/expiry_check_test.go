package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmstock/pharmstock-backend/internal/inventory/domain"
	"github.com/pharmstock/pharmstock-backend/internal/inventory/service"
	"github.com/pharmstock/pharmstock-backend/pkg/errors"
	"github.com/pharmstock/pharmstock-backend/pkg/logger"
)

type checkFixture struct {
	batches  *fakeBatchStore
	registry *fakeRunRegistry
	alerts   *fakeAlertStore
	checks   *service.ExpiryCheckService
}

func newCheckFixture(scanTimeout time.Duration) *checkFixture {
	log := logger.New("test", "test")
	batches := newFakeBatchStore()
	registry := newFakeRunRegistry()
	alerts := &fakeAlertStore{}

	checks := service.NewExpiryCheckService(
		registry,
		service.NewExpiryScanner(batches, log),
		service.NewAlertGenerator(),
		alerts,
		nil,
		scanTimeout,
		30,
		log,
	)

	return &checkFixture{batches: batches, registry: registry, alerts: alerts, checks: checks}
}

func TestExpiryCheckService_Run(t *testing.T) {
	f := newCheckFixture(time.Minute)
	now := time.Now().UTC()

	// Three critical, two warning, one info across four products.
	seedBatch(f.batches, "p1", 10, now.AddDate(0, 0, 2))
	seedBatch(f.batches, "p1", 10, now.AddDate(0, 0, 5))
	seedBatch(f.batches, "p2", 10, now.AddDate(0, 0, 7))
	seedBatch(f.batches, "p2", 10, now.AddDate(0, 0, 15))
	seedBatch(f.batches, "p3", 10, now.AddDate(0, 0, 28))
	seedBatch(f.batches, "p4", 10, now.AddDate(0, 0, 50))

	result, err := f.checks.Run(context.Background(), domain.TriggerManual, false)
	require.NoError(t, err)
	require.NotNil(t, result.Run)
	assert.False(t, result.AlreadyCompleted)

	run := result.Run
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, domain.TriggerManual, run.TriggerKind)
	assert.Equal(t, 4, run.ProductsChecked)
	assert.Equal(t, 6, run.AlertsGenerated)
	assert.Equal(t, domain.CountMap{"critical": 3, "warning": 2, "info": 1}, run.AlertsBySeverity)
	assert.Equal(t, domain.CountMap{
		domain.Bucket0To7:   3,
		domain.Bucket8To30:  2,
		domain.Bucket31To60: 1,
	}, run.AlertsByDaysRange)
	require.NotNil(t, run.ExecutionMs)
	require.NotNil(t, run.CompletedAt)

	assert.Len(t, f.alerts.alerts, 6)
	for _, alert := range f.alerts.alerts {
		assert.Equal(t, run.ID, alert.RunID)
	}

	stored := f.registry.get(run.ID)
	require.NotNil(t, stored)
	assert.Equal(t, domain.RunStatusCompleted, stored.Status)
}

func TestExpiryCheckService_Run_SecondRunSameDaySkipped(t *testing.T) {
	f := newCheckFixture(time.Minute)
	now := time.Now().UTC()
	seedBatch(f.batches, "p1", 10, now.AddDate(0, 0, 5))

	first, err := f.checks.Run(context.Background(), domain.TriggerScheduled, false)
	require.NoError(t, err)
	require.NotNil(t, first.Run)

	second, err := f.checks.Run(context.Background(), domain.TriggerManual, false)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCompleted)
	assert.Nil(t, second.Run)

	// Only the first run produced alerts.
	assert.Len(t, f.alerts.alerts, 1)
}

func TestExpiryCheckService_Run_ForceBypassesGuard(t *testing.T) {
	f := newCheckFixture(time.Minute)
	now := time.Now().UTC()
	seedBatch(f.batches, "p1", 10, now.AddDate(0, 0, 5))

	first, err := f.checks.Run(context.Background(), domain.TriggerManual, false)
	require.NoError(t, err)

	forced, err := f.checks.Run(context.Background(), domain.TriggerManual, true)
	require.NoError(t, err)
	require.NotNil(t, forced.Run)
	assert.True(t, forced.Run.Forced)
	assert.NotEqual(t, first.Run.ID, forced.Run.ID)
	assert.Equal(t, domain.RunStatusCompleted, forced.Run.Status)
}

func TestExpiryCheckService_Run_ScanTimeout(t *testing.T) {
	f := newCheckFixture(20 * time.Millisecond)
	f.batches.scanHook = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := f.checks.Run(context.Background(), domain.TriggerManual, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout))

	runs, listErr := f.registry.ListRecent(context.Background(), 10)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
}

// cancelAwareRegistry refuses writes on a dead context, the way a real
// database-backed registry would.
type cancelAwareRegistry struct {
	*fakeRunRegistry
}

func (r *cancelAwareRegistry) FailRun(ctx context.Context, runID string, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.fakeRunRegistry.FailRun(ctx, runID, message)
}

func TestExpiryCheckService_Run_RecordsFailureAfterCallerCancel(t *testing.T) {
	log := logger.New("test", "test")
	batches := newFakeBatchStore()
	registry := &cancelAwareRegistry{newFakeRunRegistry()}

	checks := service.NewExpiryCheckService(
		registry,
		service.NewExpiryScanner(batches, log),
		service.NewAlertGenerator(),
		&fakeAlertStore{},
		nil,
		time.Minute,
		30,
		log,
	)

	// The client disconnects while the scan is in flight.
	ctx, cancel := context.WithCancel(context.Background())
	batches.scanHook = func(c context.Context) error {
		cancel()
		return c.Err()
	}

	_, err := checks.Run(ctx, domain.TriggerManual, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	runs, listErr := registry.ListRecent(context.Background(), 10)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].ErrorMessage)
}

func TestExpiryCheckService_Run_CheckDateIsUTCDay(t *testing.T) {
	// Pin the process zone far enough behind UTC that the local calendar
	// day lags the UTC day for the duration of the test.
	orig := time.Local
	t.Cleanup(func() { time.Local = orig })
	nowUTC := time.Now().UTC()
	secondsIntoDay := nowUTC.Hour()*3600 + nowUTC.Minute()*60 + nowUTC.Second()
	time.Local = time.FixedZone("behind-utc", -(secondsIntoDay + 3600))

	f := newCheckFixture(time.Minute)

	result, err := f.checks.Run(context.Background(), domain.TriggerManual, false)
	require.NoError(t, err)
	require.NotNil(t, result.Run)

	after := time.Now().UTC()
	want := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, time.UTC)
	assert.Equal(t, want, result.Run.CheckDate)
	assert.Equal(t, time.UTC, result.Run.CheckDate.Location())
}

func TestExpiryCheckService_Run_AlertPersistenceFailureFailsRun(t *testing.T) {
	f := newCheckFixture(time.Minute)
	now := time.Now().UTC()
	seedBatch(f.batches, "p1", 10, now.AddDate(0, 0, 5))

	f.alerts.createErr = errors.Internal("alert store unavailable")

	_, err := f.checks.Run(context.Background(), domain.TriggerManual, false)
	require.Error(t, err)

	runs, listErr := f.registry.ListRecent(context.Background(), 10)
	require.NoError(t, listErr)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusFailed, runs[0].Status)

	// A failed run does not count as completed, so a retry is allowed.
	f.alerts.createErr = nil
	result, err := f.checks.Run(context.Background(), domain.TriggerManual, false)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, result.Run.Status)
}

func TestExpiryCheckService_History(t *testing.T) {
	f := newCheckFixture(time.Minute)

	_, err := f.checks.Run(context.Background(), domain.TriggerScheduled, false)
	require.NoError(t, err)
	_, err = f.checks.Run(context.Background(), domain.TriggerManual, true)
	require.NoError(t, err)

	runs, err := f.checks.History(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Most recently started first.
	assert.False(t, runs[0].StartedAt.Before(runs[1].StartedAt))
}

func TestExpiryCheckService_GetDashboard(t *testing.T) {
	f := newCheckFixture(time.Minute)
	now := time.Now().UTC()

	seedBatch(f.batches, "p1", 10, now.AddDate(0, 0, 5))
	seedBatch(f.batches, "p2", 10, now.AddDate(0, 0, 20))

	_, err := f.checks.Run(context.Background(), domain.TriggerScheduled, false)
	require.NoError(t, err)
	_, err = f.checks.Run(context.Background(), domain.TriggerManual, true)
	require.NoError(t, err)

	// One failed run.
	f.alerts.createErr = errors.Internal("alert store unavailable")
	_, err = f.checks.Run(context.Background(), domain.TriggerManual, true)
	require.Error(t, err)
	f.alerts.createErr = nil

	dash, err := f.checks.GetDashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, dash.TotalRuns)
	assert.Equal(t, 2, dash.CompletedRuns)
	assert.Equal(t, 1, dash.FailedRuns)
	assert.InDelta(t, 66.67, dash.SuccessRate, 0.01)
	assert.Equal(t, 2.0, dash.AvgProductsChecked)
	assert.Equal(t, 2.0, dash.AvgAlertsGenerated)
	require.NotNil(t, dash.LastRun)
	assert.Len(t, dash.RecentRuns, 3)
}

func TestExpiryCheckService_GetDashboard_Empty(t *testing.T) {
	f := newCheckFixture(time.Minute)

	dash, err := f.checks.GetDashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, dash.TotalRuns)
	assert.Equal(t, 0.0, dash.SuccessRate)
	assert.Nil(t, dash.LastRun)
}
