// Package events captures message and contact lifecycle events and fans them
// out to a sink. Emission is fire-and-forget: a slow or failing sink never
// blocks the request path.
package events

import "time"

// Category groups events by the entity they describe, for routing and
// retention decisions downstream.
type Category string

const (
	CategoryMessage  Category = "message"
	CategoryContact  Category = "contact"
	CategoryDispatch Category = "dispatch"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionMessageReceived   Action = "message.received"
	ActionMessageClassified Action = "message.classified"
	ActionMessageEnqueued   Action = "message.enqueued"
	ActionMessageSent       Action = "message.sent"
	ActionMessageDelivered  Action = "message.delivered"
	ActionMessageFailed     Action = "message.failed"

	ActionContactCreated Action = "contact.created"
	ActionContactUpdated Action = "contact.updated"
	ActionContactDeleted Action = "contact.deleted"

	ActionDispatchRetried Action = "dispatch.retried"
)

// Event is emitted from domain logic to capture key transitions. Keep it
// transport-agnostic so sinks can fan out. Phone carries the masked form
// only; raw numbers never leave the process through events.
type Event struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`

	MessageID string `json:"message_id,omitempty"`
	ContactID string `json:"contact_id,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Label     string `json:"label,omitempty"`
	Status    string `json:"status,omitempty"`
	Detail    string `json:"detail,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	Device    string `json:"device,omitempty"`
}
