package domain

import (
	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

// ClassificationResult is the ephemeral outcome of classifying one text. It
// is produced per call and only its Label survives, copied into
// Message.Classification.
type ClassificationResult struct {
	Label      pkgdomain.Classification
	Confidence float64 // 0.0 to 1.0
	Source     pkgdomain.ClassificationSource
}

// IsCritical reports whether the label demands urgent handling.
func (r ClassificationResult) IsCritical() bool {
	return r.Label == pkgdomain.ClassificationCritical
}
