package domain

import dErrors "github.com/spwotton/sms/pkg/domain-errors"

// Direction says whether a message entered the hub or is leaving it.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection constructs a Direction from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseDirection(s string) (Direction, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "direction cannot be empty")
	}
	d := Direction(s)
	if !d.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid direction")
	}
	return d, nil
}

func (d Direction) IsValid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

func (d Direction) String() string {
	return string(d)
}
