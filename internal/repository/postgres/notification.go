package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/meucuidador/care-api/internal/model"
	"github.com/meucuidador/care-api/internal/repository"
)

const notificationColumns = `id, user_id, type, title, message, is_read, created_at, read_at, patient_name, editor_name, priority`

const (
	queryInsertNotification = `
		INSERT INTO notifications (user_id, type, title, message, is_read, created_at, patient_name, editor_name, priority)
		VALUES ($1, $2, $3, $4, false, $5, $6, $7, $8)
		RETURNING id`

	queryGetNotification = `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 AND id = $2`

	queryListNotifications = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	queryNotificationSummary = `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE NOT is_read) AS unread
		FROM notifications
		WHERE user_id = $1`

	queryMarkNotificationRead = `
		UPDATE notifications
		SET is_read = true, read_at = COALESCE(read_at, $3)
		WHERE user_id = $1 AND id = $2`

	queryDeleteNotification      = `DELETE FROM notifications WHERE user_id = $1 AND id = $2`
	queryDeleteReadNotifications = `DELETE FROM notifications WHERE user_id = $1 AND is_read`
	queryDeleteReadBeforeCutoff  = `DELETE FROM notifications WHERE is_read AND read_at < $1`
)

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Priority == "" {
		n.Priority = model.NotificationPriorityNormal
	}

	err := r.db.QueryRowxContext(ctx, queryInsertNotification,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.CreatedAt,
		n.PatientName,
		n.EditorName,
		n.Priority,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, userID, id int64) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.GetContext(ctx, &n, queryGetNotification, userID, id); err != nil {
		return nil, wrapErr("failed to get notification", err)
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, userID int64, page model.Pagination) ([]*model.Notification, error) {
	page = page.Normalize()
	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, queryListNotifications, userID, page.Limit, page.Offset); err != nil {
		return nil, wrapErr("failed to list notifications", err)
	}
	return notifications, nil
}

func (r *notificationRepository) Summary(ctx context.Context, userID int64) (*model.NotificationSummary, error) {
	var summary model.NotificationSummary
	if err := r.db.GetContext(ctx, &summary, queryNotificationSummary, userID); err != nil {
		return nil, wrapErr("failed to summarize notifications", err)
	}
	return &summary, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, queryMarkNotificationRead, userID, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireAffected(res, "failed to mark notification read")
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, queryDeleteNotification, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return requireAffected(res, "failed to delete notification")
}

func (r *notificationRepository) DeleteRead(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, queryDeleteReadNotifications, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear read notifications: %w", err)
	}
	return res.RowsAffected()
}

func (r *notificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, queryDeleteReadBeforeCutoff, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup notifications: %w", err)
	}
	return res.RowsAffected()
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(res rowsAffecter, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}
