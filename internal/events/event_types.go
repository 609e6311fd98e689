package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered EventType = "user_registered"
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventTokenRefreshed EventType = "token_refreshed"
	EventUserUpdated    EventType = "user_updated"
	EventUserDeleted    EventType = "user_deleted"
)

// Event represents an authentication audit event emitted by services.
// Subject is the login identifier the event concerns; Actor is the
// authenticated caller that triggered it, when there is one.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Actor     string      `json:"actor,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload payload. Reason is a server-side label, never sent to
// clients.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	Role string `json:"role"`
}

// UserDeletedPayload payload.
type UserDeletedPayload struct {
	UserID string `json:"user_id"`
}
