package events

import (
	"time"

	"github.com/spec-kit/factory-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventNotificationReceived EventType = "notification_received"
	EventMessageReceived      EventType = "message_received"
	EventRealtimeStateChanged EventType = "realtime_state_changed"
)

// Event represents an occurrence flowing from the realtime channel or the
// refresh poller toward panel state and the push hub.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NotificationReceivedPayload payload.
type NotificationReceivedPayload struct {
	Notification domain.Notification `json:"notification"`
}

// MessageReceivedPayload payload.
type MessageReceivedPayload struct {
	Message domain.Message `json:"message"`
}

// RealtimeStateChangedPayload payload. State carries the channel lifecycle
// value ("connected", "reconnect_failed", ...) so observers can surface
// degraded mode.
type RealtimeStateChangedPayload struct {
	State    string `json:"state"`
	Attempts int    `json:"attempts,omitempty"`
}
