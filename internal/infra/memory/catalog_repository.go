package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"itqan-progress-service/internal/domain"
)

// CatalogLoader fetches the achievement catalog from a backing store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]domain.Achievement, error)
}

// CatalogRepository caches the achievement catalog with a TTL. The catalog
// changes rarely (admins edit it) but is read on every attempt completion.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	cached    []domain.Achievement
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context) ([]domain.Achievement, error) {
	now := r.clock()

	r.mu.RLock()
	if r.cached != nil && r.expiresAt.After(now) {
		defs := r.cached
		r.mu.RUnlock()
		return defs, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.cached != nil && r.expiresAt.After(now) {
			defs := r.cached
			r.mu.RUnlock()
			return defs, nil
		}
		r.mu.RUnlock()

		defs, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cached = defs
		r.expiresAt = now.Add(r.ttl)
		r.mu.Unlock()
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Achievement), nil
}

// StaticCatalogLoader serves a fixed catalog slice (useful for tests/demos).
type StaticCatalogLoader struct {
	defs []domain.Achievement
}

func NewStaticCatalogLoader(defs []domain.Achievement) *StaticCatalogLoader {
	return &StaticCatalogLoader{defs: defs}
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context) ([]domain.Achievement, error) {
	return l.defs, nil
}
