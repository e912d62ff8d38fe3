package memory

import (
	"context"
	"sort"
	"sync"

	domainprediction "sprinter/internal/domain/prediction"
)

// PredictionRepository keeps prediction history in memory.
type PredictionRepository struct {
	mu     sync.RWMutex
	byUser map[string][]*domainprediction.Record
}

func NewPredictionRepository() *PredictionRepository {
	return &PredictionRepository{byUser: make(map[string][]*domainprediction.Record)}
}

func (r *PredictionRepository) Save(ctx context.Context, record *domainprediction.Record) error {
	if record == nil || record.UserID == "" {
		return domainprediction.ErrUserRequired
	}
	c := *record
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[record.UserID] = append(r.byUser[record.UserID], &c)
	return nil
}

func (r *PredictionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domainprediction.Record, error) {
	r.mu.RLock()
	items := make([]*domainprediction.Record, 0, len(r.byUser[userID]))
	for _, rec := range r.byUser[userID] {
		c := *rec
		items = append(items, &c)
	}
	r.mu.RUnlock()

	// newest first; equal timestamps keep the most recent insert first
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var _ domainprediction.Repository = (*PredictionRepository)(nil)
