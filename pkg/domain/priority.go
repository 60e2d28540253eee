package domain

import dErrors "github.com/spwotton/sms/pkg/domain-errors"

// Priority ranks how quickly a contact should be reached.
// Invariant: the value must be one of the supported priorities; invalid
// values are rejected at the boundary and never stored.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// priorityRank orders priorities for directory listings; lower rank sorts
// first.
var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// ParsePriority constructs a Priority from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "priority cannot be empty")
	}
	p := Priority(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid priority")
	}
	return p, nil
}

func (p Priority) IsValid() bool {
	_, ok := priorityRank[p]
	return ok
}

// Rank returns the sort position of this priority, most urgent first.
// Unknown values sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

func (p Priority) String() string {
	return string(p)
}
