package handlers

import (
	"context"
	"time"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/api/models"
	"demand-montecarlo/internal/data"
	"demand-montecarlo/internal/montecarlo"
)

// experimentRecord is what the API keeps for a finished experiment.
type experimentRecord struct {
	response models.ExperimentResponse
	result   *montecarlo.Result
	summary  *analysis.Summary
}

// ExperimentStore holds finished experiments by id and maps config hashes to
// ids so identical requests can reuse a result.
type ExperimentStore struct {
	byID  *data.Cache[*experimentRecord]
	byKey *data.Cache[string]
}

func NewExperimentStore(ctx context.Context, ttl time.Duration) *ExperimentStore {
	sweep := ttl / 4
	if sweep < time.Second {
		sweep = time.Second
	}
	return &ExperimentStore{
		byID:  data.NewCache[*experimentRecord](ctx, ttl, sweep),
		byKey: data.NewCache[string](ctx, ttl, sweep),
	}
}

func (s *ExperimentStore) get(id string) (*experimentRecord, bool) {
	return s.byID.Get(id)
}

func (s *ExperimentStore) lookup(key string) (*experimentRecord, bool) {
	id, ok := s.byKey.Get(key)
	if !ok {
		return nil, false
	}
	return s.byID.Get(id)
}

func (s *ExperimentStore) put(key string, rec *experimentRecord) {
	s.byID.Set(rec.response.ID, rec)
	s.byKey.Set(key, rec.response.ID)
}

// Len counts stored experiments.
func (s *ExperimentStore) Len() int { return s.byID.Len() }
