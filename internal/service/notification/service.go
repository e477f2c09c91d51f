package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
	apperrors "github.com/meucuidador/care-api/pkg/errors"
	"github.com/meucuidador/care-api/pkg/messaging"
	"github.com/meucuidador/care-api/pkg/metrics"
	"github.com/meucuidador/care-api/pkg/validator"
)

type Service interface {
	List(ctx context.Context, userID int64, page model.Pagination) (*model.NotificationPage, error)
	MarkRead(ctx context.Context, userID, id int64) error
	Delete(ctx context.Context, userID, id int64) error
	ClearRead(ctx context.Context, userID int64) (int64, error)
	Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error)
	// Subscribe streams notifications created for userID until ctx is done.
	Subscribe(ctx context.Context, userID int64) (<-chan *model.Notification, error)
}

type service struct {
	repo      repository.NotificationRepository
	broker    messaging.Broker
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo repository.NotificationRepository, broker messaging.Broker, v validator.Validator, m *metrics.Metrics, logger zerolog.Logger) Service {
	return &service{
		repo:      repo,
		broker:    broker,
		validator: v,
		metrics:   m,
		logger:    logger.With().Str("service", "notification").Logger(),
		now:       time.Now,
	}
}

func (s *service) List(ctx context.Context, userID int64, page model.Pagination) (*model.NotificationPage, error) {
	page = page.Normalize()

	items, err := s.repo.List(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize notifications: %w", err)
	}
	if items == nil {
		items = []*model.Notification{}
	}

	return &model.NotificationPage{
		Notifications: items,
		Summary:       *summary,
		Pagination: model.NotificationPagination{
			Limit:   page.Limit,
			Offset:  page.Offset,
			Total:   summary.Total,
			HasMore: page.Offset+len(items) < summary.Total,
		},
	}, nil
}

// MarkRead is idempotent: marking an already read notification succeeds and
// keeps the original read time.
func (s *service) MarkRead(ctx context.Context, userID, id int64) error {
	if id <= 0 {
		return apperrors.BadRequest("invalid notification id", nil)
	}
	err := s.repo.MarkRead(ctx, userID, id, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("notification", err)
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	s.metrics.NotificationsMarkedRead.Inc()
	s.publish(ctx, userID, messaging.EventNotificationRead, map[string]int64{"id": id})
	return nil
}

func (s *service) Delete(ctx context.Context, userID, id int64) error {
	if id <= 0 {
		return apperrors.BadRequest("invalid notification id", nil)
	}
	err := s.repo.Delete(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("notification", err)
	}
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	s.metrics.NotificationsDeleted.Inc()
	return nil
}

func (s *service) ClearRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.DeleteRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear read notifications: %w", err)
	}
	s.metrics.NotificationsDeleted.Add(float64(n))
	s.logger.Debug().Int64("user_id", userID).Int64("deleted", n).Msg("cleared read notifications")
	return n, nil
}

func (s *service) Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.BadRequest("invalid notification", err)
	}

	n := &model.Notification{
		UserID:      req.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		CreatedAt:   s.now(),
		PatientName: req.PatientName,
		EditorName:  req.EditorName,
		Priority:    req.Priority,
	}
	if n.Priority == "" {
		n.Priority = model.NotificationPriorityNormal
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	s.metrics.NotificationsCreated.Inc()
	s.publish(ctx, n.UserID, messaging.EventNotificationCreated, n)
	return n, nil
}

func (s *service) Subscribe(ctx context.Context, userID int64) (<-chan *model.Notification, error) {
	raw, err := s.broker.Subscribe(ctx, messaging.NotificationChannel(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	out := make(chan *model.Notification, 16)
	go func() {
		defer close(out)
		for payload := range raw {
			var msg struct {
				Type    string              `json:"type"`
				Payload *model.Notification `json:"payload"`
			}
			if err := json.Unmarshal(payload, &msg); err != nil {
				s.logger.Warn().Err(err).Int64("user_id", userID).Msg("dropping malformed notification message")
				continue
			}
			if msg.Type != messaging.EventNotificationCreated || msg.Payload == nil {
				continue
			}
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *service) publish(ctx context.Context, userID int64, eventType string, payload interface{}) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{Type: eventType, Payload: payload}
	if err := s.broker.Publish(ctx, messaging.NotificationChannel(userID), msg); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Int64("user_id", userID).Msg("failed to publish notification event")
	}
}
