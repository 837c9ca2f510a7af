package repository

import (
	"context"
	"errors"
	"time"

	"ChurnScope/internal/domain/models"
	domrepo "ChurnScope/internal/domain/repository"
	"ChurnScope/pkg/cache"
)

const cacheKeyPrefix = "pred:"

// CachedPredictions adapts a cache.Service to PredictionCache.
type CachedPredictions struct {
	svc cache.Service
}

func NewCachedPredictions(svc cache.Service) *CachedPredictions {
	return &CachedPredictions{svc: svc}
}

var _ domrepo.PredictionCache = (*CachedPredictions)(nil)

type cachedResult struct {
	Label             int      `json:"label"`
	Probability       float64  `json:"p"`
	ProbabilityPct    float64  `json:"pct"`
	Message           string   `json:"msg"`
	Risk              string   `json:"risk"`
	Advice            string   `json:"advice"`
	UnknownCategories []string `json:"unknown,omitempty"`
}

// Get reports a miss as (zero, false, nil).
func (c *CachedPredictions) Get(ctx context.Context, key string) (models.PredictionResult, bool, error) {
	var v cachedResult
	if err := c.svc.Get(ctx, cacheKeyPrefix+key, &v); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.PredictionResult{}, false, nil
		}
		return models.PredictionResult{}, false, err
	}
	return models.PredictionResult{
		Label:             v.Label,
		Probability:       v.Probability,
		ProbabilityPct:    v.ProbabilityPct,
		Message:           v.Message,
		Risk:              v.Risk,
		Advice:            v.Advice,
		UnknownCategories: v.UnknownCategories,
	}, true, nil
}

func (c *CachedPredictions) Set(ctx context.Context, key string, r models.PredictionResult, ttl time.Duration) error {
	return c.svc.Set(ctx, cacheKeyPrefix+key, cachedResult{
		Label:             r.Label,
		Probability:       r.Probability,
		ProbabilityPct:    r.ProbabilityPct,
		Message:           r.Message,
		Risk:              r.Risk,
		Advice:            r.Advice,
		UnknownCategories: r.UnknownCategories,
	}, ttl)
}

func (c *CachedPredictions) Close() error { return c.svc.Close() }
