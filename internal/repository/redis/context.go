package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
	"github.com/meucuidador/care-api/pkg/metrics"
)

type contextRepository struct {
	client  redis.Cmdable
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewContextRepository(client redis.Cmdable, ttl time.Duration, m *metrics.Metrics) repository.ContextRepository {
	return &contextRepository{
		client:  client,
		ttl:     ttl,
		metrics: m,
	}
}

func (r *contextRepository) Get(ctx context.Context, viewerID int64) (*model.ViewingContext, error) {
	raw, err := r.client.Get(ctx, ViewingContextKey(viewerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.observe("get", nil)
		return nil, repository.ErrNotFound
	}
	r.observe("get", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get viewing context: %w", err)
	}

	var vc model.ViewingContext
	if err := json.Unmarshal(raw, &vc); err != nil {
		return nil, fmt.Errorf("failed to decode viewing context: %w", err)
	}
	return &vc, nil
}

func (r *contextRepository) Set(ctx context.Context, vc *model.ViewingContext) error {
	raw, err := json.Marshal(vc)
	if err != nil {
		return fmt.Errorf("failed to encode viewing context: %w", err)
	}
	err = r.client.Set(ctx, ViewingContextKey(vc.ViewerID), raw, r.ttl).Err()
	r.observe("set", err)
	if err != nil {
		return fmt.Errorf("failed to set viewing context: %w", err)
	}
	return nil
}

func (r *contextRepository) Clear(ctx context.Context, viewerID int64) error {
	err := r.client.Del(ctx, ViewingContextKey(viewerID)).Err()
	r.observe("del", err)
	if err != nil {
		return fmt.Errorf("failed to clear viewing context: %w", err)
	}
	return nil
}

func (r *contextRepository) observe(op string, err error) {
	if r.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.RedisOperations.WithLabelValues(op, status).Inc()
}
