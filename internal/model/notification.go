package model

import (
	"strings"
	"time"
)

type NotificationPriority string

const (
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityLow    NotificationPriority = "low"
)

// Rank orders priorities, higher first. Unknown values rank as normal.
func (p NotificationPriority) Rank() int {
	switch NotificationPriority(strings.ToLower(string(p))) {
	case NotificationPriorityHigh:
		return 3
	case NotificationPriorityMedium, NotificationPriorityNormal, "":
		return 2
	case NotificationPriorityLow:
		return 1
	default:
		return 2
	}
}

type Notification struct {
	ID          int64                `json:"id" db:"id"`
	UserID      int64                `json:"userId" db:"user_id"`
	Type        string               `json:"type" db:"type"`
	Title       string               `json:"title" db:"title"`
	Message     string               `json:"message" db:"message"`
	IsRead      bool                 `json:"isRead" db:"is_read"`
	CreatedAt   time.Time            `json:"createdAt" db:"created_at"`
	ReadAt      *time.Time           `json:"readAt,omitempty" db:"read_at"`
	PatientName *string              `json:"patientName,omitempty" db:"patient_name"`
	EditorName  *string              `json:"editorName,omitempty" db:"editor_name"`
	Priority    NotificationPriority `json:"priority" db:"priority"`
}

type NotificationSummary struct {
	Total  int `json:"total" db:"total"`
	Unread int `json:"unread" db:"unread"`
}

type NotificationPagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// NotificationPage is the listing shape of GET /api/notifications.
type NotificationPage struct {
	Notifications []*Notification        `json:"notifications"`
	Summary       NotificationSummary    `json:"summary"`
	Pagination    NotificationPagination `json:"pagination"`
}

type CreateNotificationRequest struct {
	UserID      int64                `json:"userId" validate:"required,gt=0"`
	Type        string               `json:"type" validate:"required,max=64"`
	Title       string               `json:"title" validate:"required,max=200"`
	Message     string               `json:"message" validate:"required"`
	PatientName *string              `json:"patientName,omitempty"`
	EditorName  *string              `json:"editorName,omitempty"`
	Priority    NotificationPriority `json:"priority" validate:"omitempty,oneof=high medium normal low"`
}
