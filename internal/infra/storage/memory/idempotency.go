package memory

import (
	"context"
	"sync"
	"time"

	"sprinter/internal/app/middleware"
)

// IdempotencyStore stores results in memory and forgets them after TTL.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]middleware.IdempotencyRecord
	ttl   time.Duration
	now   func() time.Time
}

// NewIdempotencyStore builds a store; a zero ttl keeps records forever.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		items: make(map[string]middleware.IdempotencyRecord),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lookup(key, s.now())
	return rec, ok, nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if rec, ok := s.lookup(key, now); ok {
		if !rec.Pending || now.Sub(rec.OccurredAt) < middleware.ReservationTimeout {
			return false, nil
		}
	}
	s.items[key] = middleware.IdempotencyRecord{Key: key, Pending: true, OccurredAt: now}
	return true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Pending = false
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.items[key]; ok && rec.Pending {
		delete(s.items, key)
	}
	return nil
}

// lookup drops expired records; callers hold mu.
func (s *IdempotencyStore) lookup(key string, now time.Time) (middleware.IdempotencyRecord, bool) {
	rec, ok := s.items[key]
	if !ok {
		return middleware.IdempotencyRecord{}, false
	}
	if s.ttl > 0 && now.Sub(rec.OccurredAt) > s.ttl {
		delete(s.items, key)
		return middleware.IdempotencyRecord{}, false
	}
	return rec, true
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
