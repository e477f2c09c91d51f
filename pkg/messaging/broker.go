package messaging

import (
	"context"
	"fmt"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope published for domain events.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventPatientContextSwitched = "patient_context.switched"
	EventPatientContextCleared  = "patient_context.cleared"
	EventNotificationCreated    = "notification.created"
	EventNotificationRead       = "notification.read"
)

const ChannelPatientContext = "patient_context"

// NotificationChannel is the per-user push channel.
func NotificationChannel(userID int64) string {
	return fmt.Sprintf("notifications:%d", userID)
}
