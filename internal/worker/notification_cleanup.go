package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/pkg/metrics"
)

type ReadNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanupWorker deletes read notifications once they are older
// than the retention window. Unread notifications are never touched.
type NotificationCleanupWorker struct {
	repo            ReadNotificationPurger
	retentionDays   int
	cleanupInterval time.Duration
	metrics         *metrics.Metrics
	logger          zerolog.Logger
	now             func() time.Time
}

func NewNotificationCleanupWorker(
	repo ReadNotificationPurger,
	retentionDays int,
	cleanupInterval time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *NotificationCleanupWorker {
	return &NotificationCleanupWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		metrics:         m,
		logger:          logger.With().Str("worker", "notification_cleanup").Logger(),
		now:             time.Now,
	}
}

// Start sweeps once immediately and then on every interval until ctx is done.
func (w *NotificationCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	w.logger.Info().
		Int("retention_days", w.retentionDays).
		Dur("interval", w.cleanupInterval).
		Msg("Worker started")

	w.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Worker shutting down")
			return
		case <-ticker.C:
			w.runAndLog(ctx)
		}
	}
}

func (w *NotificationCleanupWorker) runAndLog(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Error cleaning up notifications")
	}
}

func (w *NotificationCleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	timer := prometheus.NewTimer(w.metrics.CleanupLatency)
	defer timer.ObserveDuration()

	cutoff := w.now().AddDate(0, 0, -w.retentionDays)
	rows, err := w.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup notifications: %w", err)
	}

	w.metrics.CleanupDeleted.Add(float64(rows))
	w.logger.Info().Int64("deleted", rows).Time("cutoff", cutoff).Msg("Cleaned up read notifications")
	return rows, nil
}
