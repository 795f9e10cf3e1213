package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventPrincipalCreated  EventType = "principal_created"
	EventRoleChanged       EventType = "role_changed"
	EventRoleSyncDegraded  EventType = "role_sync_degraded"
	EventOneTimeCodeIssued EventType = "one_time_code_issued"
)

// Event represents a domain event emitted by services. Subject is the principal's email.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// PrincipalCreatedPayload payload.
type PrincipalCreatedPayload struct {
	PrincipalID        string  `json:"principal_id"`
	Role               *string `json:"role"`
	NeedsRoleSelection bool    `json:"needs_role_selection"`
}

// RoleChangedPayload payload.
type RoleChangedPayload struct {
	PrincipalID  string  `json:"principal_id"`
	PreviousRole *string `json:"previous_role"`
	NewRole      string  `json:"new_role"`
}

// RoleSyncDegradedPayload lists the advisory steps that failed.
type RoleSyncDegradedPayload struct {
	Role        string   `json:"role"`
	FailedSteps []string `json:"failed_steps"`
}

// OneTimeCodeIssuedPayload carries a development sign-in code.
type OneTimeCodeIssuedPayload struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}
