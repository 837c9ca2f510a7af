package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"ChurnScope/internal/domain/models"
	domrepo "ChurnScope/internal/domain/repository"
	domsvc "ChurnScope/internal/domain/service"
	"ChurnScope/internal/services/churn"
	"ChurnScope/pkg/logger"

	"github.com/google/uuid"
)

// Prediction sources recorded on events and metrics.
const (
	SourceAPI       = "api"
	SourceWeb       = "web"
	SourceDashboard = "dashboard"
	SourceKafka     = "kafka"
)

// Auditor accepts prediction events for asynchronous persistence.
type Auditor interface {
	Enqueue(e *models.PredictionEvent) bool
}

// Scored is a prediction together with the event that describes it.
type Scored struct {
	Event  *models.PredictionEvent
	Cached bool
}

// PredictionService runs the inference pipeline for every front end and takes
// care of the side effects: cache, event publishing, audit log and metrics.
// Side effects are best effort and never fail a prediction.
type PredictionService struct {
	predictor domsvc.Predictor
	cache     domrepo.PredictionCache
	cacheTTL  time.Duration
	publisher domrepo.EventPublisher
	auditor   Auditor
	store     domrepo.PredictionStore
	metrics   domrepo.Metrics
	log       *logger.Logger

	now   func() time.Time
	newID func() string
}

type ServiceOption func(*PredictionService)

// WithCache memoizes results for ttl. A nil cache disables memoization.
func WithCache(c domrepo.PredictionCache, ttl time.Duration) ServiceOption {
	return func(s *PredictionService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithPublisher(p domrepo.EventPublisher) ServiceOption {
	return func(s *PredictionService) { s.publisher = p }
}

func WithAuditor(a Auditor) ServiceOption {
	return func(s *PredictionService) { s.auditor = a }
}

// WithStore sets the store Recent reads from.
func WithStore(st domrepo.PredictionStore) ServiceOption {
	return func(s *PredictionService) { s.store = st }
}

func NewPredictionService(p domsvc.Predictor, m domrepo.Metrics, log *logger.Logger, opts ...ServiceOption) *PredictionService {
	if log == nil {
		log = logger.Nop()
	}
	s := &PredictionService{
		predictor: p,
		metrics:   m,
		log:       log.With(logger.String("component", "prediction_service")),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns metadata of the loaded model.
func (s *PredictionService) Model() models.ModelInfo { return s.predictor.Info() }

// Predict validates and scores one raw record. A *churn.ValidationError is
// returned unchanged for invalid numeric input.
func (s *PredictionService) Predict(ctx context.Context, raw map[string]string, source, requestID string) (*Scored, error) {
	start := s.now()
	defer func() {
		s.metrics.RecordLatency("predict", s.now().Sub(start).Seconds())
	}()

	rec, err := s.predictor.Validate(raw)
	if err != nil {
		s.reject(ctx, source, requestID, err)
		return nil, err
	}
	return s.score(ctx, rec, source, requestID), nil
}

func (s *PredictionService) score(ctx context.Context, rec models.CustomerRecord, source, requestID string) *Scored {
	version := s.predictor.Info().Version
	key := CacheKey(version, rec)

	result, cached := s.lookup(ctx, key)
	if !cached {
		result = s.predictor.PredictRecord(rec)
		s.remember(ctx, key, result)
	}

	ev := &models.PredictionEvent{
		ID:           s.newID(),
		Source:       source,
		RequestID:    requestID,
		Record:       rec,
		Result:       result,
		ModelVersion: version,
		CreatedAt:    s.now().UTC(),
	}

	s.metrics.RecordPrediction(source, result.Label, result.Probability)
	for _, field := range result.UnknownCategories {
		s.metrics.RecordUnknownCategory(field)
	}
	if len(result.UnknownCategories) > 0 {
		s.log.Debug("unknown categories encoded as zero block",
			logger.String("source", source),
			logger.Strings("fields", result.UnknownCategories),
		)
	}

	s.emit(ctx, ev)
	return &Scored{Event: ev, Cached: cached}
}

func (s *PredictionService) lookup(ctx context.Context, key string) (models.PredictionResult, bool) {
	if s.cache == nil {
		return models.PredictionResult{}, false
	}
	r, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.metrics.RecordCache("error")
		s.log.Warn("prediction cache get failed", logger.Error(err))
		return models.PredictionResult{}, false
	}
	if !ok {
		s.metrics.RecordCache("miss")
		return models.PredictionResult{}, false
	}
	s.metrics.RecordCache("hit")
	return r, true
}

func (s *PredictionService) remember(ctx context.Context, key string, r models.PredictionResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, r, s.cacheTTL); err != nil {
		s.metrics.RecordError("cache_set")
		s.log.Warn("prediction cache set failed", logger.Error(err))
	}
}

func (s *PredictionService) emit(ctx context.Context, ev *models.PredictionEvent) {
	if s.publisher != nil {
		if err := s.publisher.PublishPrediction(ctx, ev); err != nil {
			s.metrics.RecordError("publish_prediction")
			s.log.Warn("publish prediction event failed",
				logger.String("id", ev.ID),
				logger.Error(err),
			)
		}
	}
	if s.auditor != nil && !s.auditor.Enqueue(ev) {
		s.log.Warn("audit event dropped", logger.String("id", ev.ID))
	}
}

func (s *PredictionService) reject(ctx context.Context, source, requestID string, err error) {
	var verr *churn.ValidationError
	if !errors.As(err, &verr) {
		s.metrics.RecordError("validate")
		return
	}
	s.metrics.RecordRejection(source, verr.Field)
	if s.publisher == nil {
		return
	}
	rej := &models.RejectionEvent{
		RequestID: requestID,
		Source:    source,
		Field:     verr.Field,
		Reason:    verr.Error(),
		CreatedAt: s.now().UTC(),
	}
	if perr := s.publisher.PublishRejection(ctx, rej); perr != nil {
		s.metrics.RecordError("publish_rejection")
		s.log.Warn("publish rejection event failed", logger.Error(perr))
	}
}

// Recent returns the latest audited predictions, newest first. It is empty
// when no store is configured.
func (s *PredictionService) Recent(ctx context.Context, limit int) ([]*models.PredictionEvent, error) {
	if s.store == nil {
		return nil, nil
	}
	events, err := s.store.Recent(ctx, limit)
	if err != nil {
		s.metrics.RecordError("store_recent")
		return nil, err
	}
	return events, nil
}

// CacheKey derives a deterministic key from the model version and the
// canonical form of a validated record.
func CacheKey(version string, rec models.CustomerRecord) string {
	var b strings.Builder
	b.WriteString(version)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(rec.Tenure))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(rec.MonthlyCharges, 'f', -1, 64))
	b.WriteByte('|')
	b.WriteString(rec.Contract)
	b.WriteByte('|')
	b.WriteString(rec.PaymentMethod)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}
