package domain

import dErrors "github.com/spwotton/sms/pkg/domain-errors"

// Classification is the urgency label assigned to a message at creation.
// It is set once and never changes afterwards.
type Classification string

const (
	ClassificationStable   Classification = "stable"
	ClassificationCritical Classification = "critical"
)

// ParseClassification constructs a Classification from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseClassification(s string) (Classification, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "classification cannot be empty")
	}
	c := Classification(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid classification")
	}
	return c, nil
}

func (c Classification) IsValid() bool {
	return c == ClassificationStable || c == ClassificationCritical
}

func (c Classification) String() string {
	return string(c)
}

// ClassificationSource records which path produced a label: the local
// heuristic, the remote model, or the heuristic used as a fallback after a
// remote failure.
type ClassificationSource string

const (
	SourceHeuristic   ClassificationSource = "heuristic"
	SourceRemoteModel ClassificationSource = "remote_model"
	SourceFallback    ClassificationSource = "fallback"
)

func (s ClassificationSource) IsValid() bool {
	return s == SourceHeuristic || s == SourceRemoteModel || s == SourceFallback
}

func (s ClassificationSource) String() string {
	return string(s)
}
