// Package memory holds in-process repositories backed by go-cache.
package memory

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
)

type ContextRepository struct {
	cache *cache.Cache
}

// NewContextRepository keeps viewing contexts for ttl, sweeping expired
// entries every cleanup interval.
func NewContextRepository(ttl, cleanup time.Duration) *ContextRepository {
	return &ContextRepository{
		cache: cache.New(ttl, cleanup),
	}
}

var _ repository.ContextRepository = (*ContextRepository)(nil)

func (r *ContextRepository) Get(_ context.Context, viewerID int64) (*model.ViewingContext, error) {
	if x, found := r.cache.Get(key(viewerID)); found {
		vc := x.(model.ViewingContext)
		return &vc, nil
	}
	return nil, repository.ErrNotFound
}

func (r *ContextRepository) Set(_ context.Context, vc *model.ViewingContext) error {
	r.cache.Set(key(vc.ViewerID), *vc, cache.DefaultExpiration)
	return nil
}

func (r *ContextRepository) Clear(_ context.Context, viewerID int64) error {
	r.cache.Delete(key(viewerID))
	return nil
}

func key(viewerID int64) string {
	return strconv.FormatInt(viewerID, 10)
}
