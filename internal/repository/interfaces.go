package repository

import (
	"context"
	"errors"
	"time"

	"github.com/meucuidador/care-api/internal/model"
)

var ErrNotFound = errors.New("not found")

type (
	UserRepository interface {
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	// PatientRepository answers which patients a viewer may access.
	PatientRepository interface {
		Get(ctx context.Context, id int64) (*model.Patient, error)
		ListAccessible(ctx context.Context, caregiverID int64) ([]*model.Patient, error)
		SearchAccessible(ctx context.Context, caregiverID int64, query string, limit int) ([]*model.Patient, error)
		HasAccess(ctx context.Context, caregiverID, patientID int64) (bool, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		Get(ctx context.Context, userID, id int64) (*model.Notification, error)
		List(ctx context.Context, userID int64, page model.Pagination) ([]*model.Notification, error)
		Summary(ctx context.Context, userID int64) (*model.NotificationSummary, error)
		MarkRead(ctx context.Context, userID, id int64, at time.Time) error
		Delete(ctx context.Context, userID, id int64) error
		DeleteRead(ctx context.Context, userID int64) (int64, error)
		DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// ContextRepository persists the server-side viewing context.
	ContextRepository interface {
		Get(ctx context.Context, viewerID int64) (*model.ViewingContext, error)
		Set(ctx context.Context, vc *model.ViewingContext) error
		Clear(ctx context.Context, viewerID int64) error
	}
)
