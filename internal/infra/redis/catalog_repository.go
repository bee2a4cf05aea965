package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"itqan-progress-service/internal/domain"
)

const catalogKey = "achievements:catalog"

// CatalogLoader fetches the achievement catalog from a backing store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) ([]domain.Achievement, error)
}

// CatalogRepository caches the achievement catalog as a JSON array in Redis.
// The array form preserves the definition order the evaluator relies on.
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{client: client, loader: loader, ttl: ttl}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context) ([]domain.Achievement, error) {
	if defs, ok := r.fromCache(ctx); ok {
		return defs, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		if defs, ok := r.fromCache(ctx); ok {
			return defs, nil
		}

		defs, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(defs); err == nil {
			_ = r.client.Set(ctx, catalogKey, data, r.ttl).Err()
		}
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Achievement), nil
}

func (r *CatalogRepository) fromCache(ctx context.Context) ([]domain.Achievement, bool) {
	data, err := r.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		return nil, false
	}
	var defs []domain.Achievement
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, false
	}
	return defs, true
}

// Invalidate drops the cached catalog, e.g. after an admin edits a badge.
func (r *CatalogRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, catalogKey).Err()
}
