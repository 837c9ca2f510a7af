package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ChurnScope/internal/domain/models"
	domrepo "ChurnScope/internal/domain/repository"
	"ChurnScope/pkg/logger"
)

// AuditPipeline sits between the prediction path and the PredictionStore.
// Events are buffered and written in batches so a slow or unavailable store
// never blocks scoring. When the buffer is full new events are dropped.
type AuditPipeline struct {
	store       domrepo.PredictionStore
	metrics     domrepo.Metrics
	log         *logger.Logger
	batchSize   int
	interval    time.Duration
	maxAttempts int
	bufCh       chan *models.PredictionEvent
	stopCh      chan struct{}
	doneCh      chan struct{}
	mu          sync.Mutex
	started     bool
	stopped     bool
}

type AuditOption func(*AuditPipeline)

func WithBatchSize(n int) AuditOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) AuditOption {
	return func(p *AuditPipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithBufferSize sets how many events may wait for the store.
func WithBufferSize(n int) AuditOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.PredictionEvent, n)
		}
	}
}

// WithMaxAttempts bounds how often one batch is retried before it is dropped.
func WithMaxAttempts(n int) AuditOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func NewAuditPipeline(store domrepo.PredictionStore, metrics domrepo.Metrics, log *logger.Logger, opts ...AuditOption) *AuditPipeline {
	if log == nil {
		log = logger.Nop()
	}
	p := &AuditPipeline{
		store:       store,
		metrics:     metrics,
		log:         log.With(logger.String("component", "audit_pipeline")),
		batchSize:   200,
		interval:    2 * time.Second,
		maxAttempts: 5,
		bufCh:       make(chan *models.PredictionEvent, 5000),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue hands e to the background writer. It never blocks and reports
// false when the event was rejected or dropped.
func (p *AuditPipeline) Enqueue(e *models.PredictionEvent) bool {
	if err := validateEvent(e); err != nil {
		p.metrics.RecordError("audit_invalid")
		p.log.Warn("audit event rejected", logger.Error(err))
		return false
	}
	select {
	case p.bufCh <- e:
		return true
	default:
		p.metrics.RecordError("audit_buffer_full")
		return false
	}
}

// Pending reports buffered events not yet taken by the writer.
func (p *AuditPipeline) Pending() int { return len(p.bufCh) }

// Start launches the batch writer.
func (p *AuditPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop drains the buffer with a final write bounded by ctx.
func (p *AuditPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	close(p.stopCh)
	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit pipeline stop: %w", ctx.Err())
	}
}

func (p *AuditPipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	batch := make([]*models.PredictionEvent, 0, p.batchSize)
	attempts := 0
	backoff := 50 * time.Millisecond
	var retryAt time.Time

	flush := func(force bool) {
		if len(batch) == 0 {
			return
		}
		if !force && time.Now().Before(retryAt) {
			return
		}
		start := time.Now()
		err := p.store.StoreBatch(ctx, batch)
		if err == nil {
			p.metrics.RecordLatency("audit_flush", time.Since(start).Seconds())
			batch = make([]*models.PredictionEvent, 0, p.batchSize)
			attempts = 0
			backoff = 50 * time.Millisecond
			retryAt = time.Time{}
			return
		}

		attempts++
		p.metrics.RecordError("audit_flush")
		if attempts >= p.maxAttempts || force {
			p.log.Error("audit batch dropped",
				logger.Int("events", len(batch)),
				logger.Int("attempts", attempts),
				logger.Error(err),
			)
			p.metrics.RecordError("audit_drop")
			batch = make([]*models.PredictionEvent, 0, p.batchSize)
			attempts = 0
			backoff = 50 * time.Millisecond
			retryAt = time.Time{}
			return
		}
		p.log.Warn("audit flush failed, will retry", logger.Int("events", len(batch)), logger.Error(err))
		retryAt = time.Now().Add(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}

	for {
		// hold intake while a failed batch waits for its retry
		intake := p.bufCh
		if !retryAt.IsZero() {
			intake = nil
		}
		select {
		case e := <-intake:
			batch = append(batch, e)
			if len(batch) >= p.batchSize {
				flush(false)
			}
		case <-ticker.C:
			flush(false)
		case <-p.stopCh:
		drain:
			for {
				select {
				case e := <-p.bufCh:
					batch = append(batch, e)
					if len(batch) >= p.batchSize {
						flush(true)
					}
				default:
					break drain
				}
			}
			flush(true)
			return
		case <-ctx.Done():
			return
		}
	}
}

func validateEvent(e *models.PredictionEvent) error {
	if e == nil {
		return fmt.Errorf("event nil")
	}
	if e.ID == "" {
		return fmt.Errorf("event id empty")
	}
	if e.Result.Probability < 0 || e.Result.Probability > 1 {
		return fmt.Errorf("probability %v out of range", e.Result.Probability)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at missing")
	}
	return nil
}
