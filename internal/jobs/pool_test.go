package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/loads"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/material"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/risk"
	"github.com/devalgupta404/IntegrityInspect/internal/metrics"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assessedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recorder) record(ra *assessment.RiskAssessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ra.AssessmentID)
	return r.err
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

type fakePublisher struct{ recorder }

func (f *fakePublisher) Publish(_ context.Context, ra *assessment.RiskAssessment) error {
	return f.record(ra)
}
func (f *fakePublisher) Close() error { return nil }

type fakeNotifier struct{ recorder }

func (f *fakeNotifier) Notify(_ context.Context, ra *assessment.RiskAssessment) error {
	return f.record(ra)
}

type failingEstimator struct{}

func (failingEstimator) Estimate(context.Context, loads.Input) (loads.Estimate, error) {
	return loads.Estimate{}, errors.New("solver exploded")
}
func (failingEstimator) Fidelity() loads.Fidelity { return loads.HighFidelity }

type fixture struct {
	pool     *Pool
	store    *repo.MemoryAssessmentStore
	metrics  *metrics.Metrics
	pub      *fakePublisher
	notifier *fakeNotifier
}

func newFixture(t *testing.T, est loads.Estimator, opts ...Option) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(assessedAt)
	engine := assessment.NewEngine(material.NewCatalog(), est, assessment.WithClock(clock))
	store := repo.NewMemoryAssessmentStore(time.Hour, clock)
	t.Cleanup(store.Close)

	f := &fixture{
		store:    store,
		metrics:  metrics.NewMetricsForTesting(),
		pub:      &fakePublisher{},
		notifier: &fakeNotifier{},
	}
	opts = append([]Option{
		WithWorkers(2),
		WithQueueSize(4),
		WithMetrics(f.metrics),
		WithPublisher(f.pub),
		WithNotifier(f.notifier),
	}, opts...)
	f.pool = New(engine, store, opts...)
	return f
}

func residential() assessment.Request {
	return assessment.Request{BuildingType: "residential", Floors: 5, Material: "concrete", YearBuilt: 1995}
}

func industrialCollapse() assessment.Request {
	return assessment.Request{
		BuildingType: "industrial",
		Floors:       10,
		Material:     "steel",
		YearBuilt:    1960,
		DamageTypes:  []string{"partial_collapse", "column_damage", "cracks", "tilting"},
		Annotations: []assessment.AnnotationInput{
			{IssueType: "partial_collapse", Position: assessment.Position{X: 512, Y: 512}},
		},
	}
}

func (f *fixture) waitFor(t *testing.T, id string, want repo.Status) repo.AssessmentRecord {
	t.Helper()
	var rec repo.AssessmentRecord
	require.Eventually(t, func() bool {
		var err error
		rec, err = f.store.Get(context.Background(), id)
		return err == nil && rec.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return rec
}

func TestPool_SubmitCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, loads.SimplifiedEstimator{})
	f.pool.Start(ctx)
	defer f.pool.Stop(ctx)

	id, err := f.pool.Submit(ctx, residential(), 7)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec := f.waitFor(t, id, repo.StatusCompleted)
	require.NotNil(t, rec.Result)
	assert.Equal(t, id, rec.Result.AssessmentID)
	assert.Equal(t, 7, rec.UserID)
	assert.Equal(t, assessedAt, rec.Result.GeneratedAt)

	direct, err := assessment.NewEngine(material.NewCatalog(), loads.SimplifiedEstimator{},
		assessment.WithClock(clockwork.NewFakeClockAt(assessedAt))).Assess(ctx, residential())
	require.NoError(t, err)
	assert.Equal(t, direct.RiskScore, rec.Result.RiskScore)
	assert.Equal(t, direct.SafetyFactor, rec.Result.SafetyFactor)

	require.Eventually(t, func() bool { return testutil.ToFloat64(f.metrics.JobsInFlight) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Assessments.WithLabelValues(string(rec.Result.RiskLevel))))
}

func TestPool_IgnoresClientAssessmentID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, loads.SimplifiedEstimator{})

	req := residential()
	req.AssessmentID = "site-42"
	first, err := f.pool.Submit(ctx, req, 1)
	require.NoError(t, err)
	assert.NotEqual(t, "site-42", first)

	// another user reusing the same id gets a fresh record of their own
	second, err := f.pool.Submit(ctx, req, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = f.store.Get(ctx, "site-42")
	assert.ErrorIs(t, err, repo.ErrAssessmentNotFound)
	rec, err := f.store.Get(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.UserID)
}

func TestPool_ValidationIsSynchronous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, loads.SimplifiedEstimator{})

	req := residential()
	req.Floors = 0
	_, err := f.pool.Submit(ctx, req, 1)

	var verr *assessment.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, f.store.Len())
}

func TestPool_QueueFull(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, loads.SimplifiedEstimator{}, WithQueueSize(1))

	first, err := f.pool.Submit(ctx, residential(), 1)
	require.NoError(t, err)

	_, err = f.pool.Submit(ctx, residential(), 2)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.QueueRejected))

	rejected, err := f.store.List(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, repo.StatusFailed, rejected[0].Status)
	assert.Equal(t, ErrQueueFull.Error(), rejected[0].Error)

	f.pool.Start(ctx)
	f.waitFor(t, first, repo.StatusCompleted)
	require.NoError(t, f.pool.Stop(ctx))
}

func TestPool_StopDrainsQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, loads.SimplifiedEstimator{})

	a, err := f.pool.Submit(ctx, residential(), 1)
	require.NoError(t, err)
	b, err := f.pool.Submit(ctx, residential(), 1)
	require.NoError(t, err)

	f.pool.Start(ctx)
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.pool.Stop(stopCtx))

	for _, id := range []string{a, b} {
		rec, err := f.store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, repo.StatusCompleted, rec.Status)
	}

	_, err = f.pool.Submit(ctx, residential(), 1)
	assert.ErrorIs(t, err, ErrStopped)
	assert.NoError(t, f.pool.Stop(ctx))
}

func TestPool_EngineFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingEstimator{})
	f.pool.Start(ctx)
	defer f.pool.Stop(ctx)

	id, err := f.pool.Submit(ctx, residential(), 1)
	require.NoError(t, err)

	rec := f.waitFor(t, id, repo.StatusFailed)
	assert.Contains(t, rec.Error, "solver exploded")
	assert.Nil(t, rec.Result)
	assert.Empty(t, f.pub.seen())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AssessmentErrors.WithLabelValues("internal")))
}

func TestPool_PublishesAndAlerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, loads.SimplifiedEstimator{})
	f.pool.Start(ctx)

	low, err := f.pool.Submit(ctx, residential(), 1)
	require.NoError(t, err)
	crit, err := f.pool.Submit(ctx, industrialCollapse(), 1)
	require.NoError(t, err)
	require.NoError(t, f.pool.Stop(ctx))

	rec, err := f.store.Get(ctx, crit)
	require.NoError(t, err)
	require.Equal(t, risk.Critical, rec.Result.RiskLevel)

	assert.ElementsMatch(t, []string{low, crit}, f.pub.seen())
	assert.Equal(t, []string{crit}, f.notifier.seen())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Published.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("success")))
}

func TestPool_SideEffectFailuresKeepResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, loads.SimplifiedEstimator{})
	f.pub.err = errors.New("broker down")
	f.notifier.err = errors.New("bot blocked")
	f.pool.Start(ctx)

	id, err := f.pool.Submit(ctx, industrialCollapse(), 1)
	require.NoError(t, err)
	require.NoError(t, f.pool.Stop(ctx))

	rec, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, repo.StatusCompleted, rec.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Published.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("error")))
}
