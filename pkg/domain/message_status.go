package domain

import dErrors "github.com/spwotton/sms/pkg/domain-errors"

// MessageStatus tracks delivery progress. Messages are created pending;
// dispatch advances them to sent or failed, and a confirmed delivery report
// advances sent to delivered.
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

var validMessageStatuses = map[MessageStatus]bool{
	MessageStatusPending:   true,
	MessageStatusSent:      true,
	MessageStatusDelivered: true,
	MessageStatusFailed:    true,
}

// ParseMessageStatus constructs a MessageStatus from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseMessageStatus(s string) (MessageStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := MessageStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status")
	}
	return st, nil
}

func (s MessageStatus) IsValid() bool {
	return validMessageStatuses[s]
}

// statusTransitions enumerates the legal delivery edges. Delivered and
// failed are terminal.
var statusTransitions = map[MessageStatus]map[MessageStatus]bool{
	MessageStatusPending:   {MessageStatusSent: true, MessageStatusFailed: true},
	MessageStatusSent:      {MessageStatusDelivered: true, MessageStatusFailed: true},
	MessageStatusDelivered: {},
	MessageStatusFailed:    {},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	return statusTransitions[s][next]
}

func (s MessageStatus) String() string {
	return string(s)
}
