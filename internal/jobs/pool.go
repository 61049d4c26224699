package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devalgupta404/IntegrityInspect/internal/calc/assessment"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/building"
	"github.com/devalgupta404/IntegrityInspect/internal/calc/damage"
	"github.com/devalgupta404/IntegrityInspect/internal/logger"
	"github.com/devalgupta404/IntegrityInspect/internal/metrics"
	"github.com/devalgupta404/IntegrityInspect/internal/notify"
	"github.com/devalgupta404/IntegrityInspect/internal/publish"
	"github.com/devalgupta404/IntegrityInspect/internal/repo"
	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("job queue full")
	ErrStopped   = errors.New("job pool stopped")
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
	sideEffectWait   = 10 * time.Second
)

type job struct {
	id       string
	building building.Building
	anns     []damage.Annotation
	fallback bool
	queuedAt time.Time
}

// Pool runs assessments on a fixed number of workers fed by a bounded queue.
type Pool struct {
	engine    *assessment.Engine
	store     repo.AssessmentStore
	publisher publish.Publisher
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	log       *logger.Logger

	workers   int
	queueSize int

	mu      sync.RWMutex
	queue   chan job
	started bool
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

func WithPublisher(pub publish.Publisher) Option {
	return func(p *Pool) { p.publisher = pub }
}

func WithNotifier(n notify.Notifier) Option {
	return func(p *Pool) { p.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(p *Pool) { p.log = l }
}

func New(engine *assessment.Engine, store repo.AssessmentStore, opts ...Option) *Pool {
	p := &Pool{
		engine:    engine,
		store:     store,
		publisher: publish.Noop{},
		notifier:  notify.Noop{},
		metrics:   metrics.NewMetricsForTesting(),
		log:       logger.Nop(),
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan job, p.queueSize)
	return p
}

// Start launches the workers. They run until Stop; ctx is passed to every job.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
	p.log.Info("Job pool started", map[string]interface{}{
		"workers":    p.workers,
		"queue_size": p.queueSize,
	})
}

// Submit validates req, records it as processing and queues it under a new
// id. The caller's AssessmentID is not used as the key. Validation errors are
// returned before anything is stored.
func (p *Pool) Submit(ctx context.Context, req assessment.Request, userID int) (string, error) {
	b, anns, fallback, err := p.engine.Prepare(req)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", ErrStopped
	}
	if err := p.store.Create(ctx, id, userID); err != nil {
		return "", fmt.Errorf("create assessment: %w", err)
	}

	select {
	case p.queue <- job{id: id, building: b, anns: anns, fallback: fallback, queuedAt: time.Now()}:
		p.metrics.JobsInFlight.Inc()
		return id, nil
	default:
		p.metrics.QueueRejected.Inc()
		if err := p.store.Fail(ctx, id, ErrQueueFull.Error()); err != nil {
			p.log.Error("Failed to mark rejected assessment", err, map[string]interface{}{"assessment_id": id})
		}
		return "", ErrQueueFull
	}
}

// Stop rejects new submissions, lets the workers drain the queue and waits for
// them until ctx is done.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("Job pool stopped", nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop job pool: %w", ctx.Err())
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.queue {
		p.process(ctx, j)
	}
}

func (p *Pool) process(ctx context.Context, j job) {
	defer p.metrics.JobsInFlight.Dec()
	log := p.log.With(map[string]interface{}{"assessment_id": j.id})

	start := time.Now()
	ra, err := p.engine.Run(ctx, j.building, j.anns)
	if err != nil {
		p.metrics.AssessmentErrors.WithLabelValues(assessment.ErrorKind(err)).Inc()
		log.Error("Assessment failed", err, nil)
		if err := p.store.Fail(ctx, j.id, err.Error()); err != nil {
			log.Error("Failed to store assessment failure", err, nil)
		}
		return
	}
	ra.AssessmentID = j.id
	ra.MaterialFallback = j.fallback
	p.metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
	p.metrics.Assessments.WithLabelValues(string(ra.RiskLevel)).Inc()

	if err := p.store.Complete(ctx, j.id, ra); err != nil {
		log.Error("Failed to store assessment result", err, nil)
		return
	}
	log.Info("Assessment completed", map[string]interface{}{
		"risk_level": ra.RiskLevel,
		"risk_score": ra.RiskScore,
		"queued_ms":  start.Sub(j.queuedAt).Milliseconds(),
	})

	p.afterComplete(ctx, log, ra)
}

// afterComplete publishes and alerts. Failures here are logged and counted; the
// stored result stands.
func (p *Pool) afterComplete(ctx context.Context, log *logger.Logger, ra *assessment.RiskAssessment) {
	ctx, cancel := context.WithTimeout(ctx, sideEffectWait)
	defer cancel()

	if err := p.publisher.Publish(ctx, ra); err != nil {
		p.metrics.Published.WithLabelValues("error").Inc()
		log.Warn("Publish failed", map[string]interface{}{"error": err.Error()})
	} else {
		p.metrics.Published.WithLabelValues("success").Inc()
	}

	if !notify.Alertable(ra.RiskLevel) {
		return
	}
	if err := p.notifier.Notify(ctx, ra); err != nil {
		p.metrics.Notifications.WithLabelValues("error").Inc()
		log.Warn("Responder alert failed", map[string]interface{}{"error": err.Error()})
		return
	}
	p.metrics.Notifications.WithLabelValues("success").Inc()
}
