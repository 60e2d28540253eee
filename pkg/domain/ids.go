package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time: a ContactID can
// never be passed where a MessageID is expected. Construct via NewX for fresh
// identities and ParseX at trust boundaries.

type ContactID uuid.UUID

type MessageID uuid.UUID

type JobID uuid.UUID

func NewContactID() ContactID { return ContactID(uuid.New()) }

func NewMessageID() MessageID { return MessageID(uuid.New()) }

func NewJobID() JobID { return JobID(uuid.New()) }

// ParseContactID validates external input as a non-nil UUID.
// Errors: CodeInvalidInput for empty, malformed, or nil-UUID input.
func ParseContactID(s string) (ContactID, error) {
	id, err := parseID(s, "contact id")
	return ContactID(id), err
}

// ParseMessageID validates external input as a non-nil UUID.
func ParseMessageID(s string) (MessageID, error) {
	id, err := parseID(s, "message id")
	return MessageID(id), err
}

// ParseJobID validates external input as a non-nil UUID.
func ParseJobID(s string) (JobID, error) {
	id, err := parseID(s, "job id")
	return JobID(id), err
}

func parseID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return id, nil
}

func (id ContactID) String() string { return uuid.UUID(id).String() }
func (id MessageID) String() string { return uuid.UUID(id).String() }
func (id JobID) String() string     { return uuid.UUID(id).String() }

func (id ContactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id JobID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps the JSON representation a plain UUID string; defined
// types do not inherit uuid.UUID's methods.

func (id ContactID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id MessageID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id JobID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *ContactID) UnmarshalText(b []byte) error {
	parsed, err := ParseContactID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *MessageID) UnmarshalText(b []byte) error {
	parsed, err := ParseMessageID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *JobID) UnmarshalText(b []byte) error {
	parsed, err := ParseJobID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
