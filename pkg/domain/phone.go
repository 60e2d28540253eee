package domain

import (
	"strings"

	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

// Phone is an E.164 phone number. Construct via ParsePhone at trust
// boundaries; direct casting bypasses validation.
type Phone string

// ParsePhone normalizes and validates an E.164 number: leading +, then 8 to
// 15 digits with a non-zero first digit. Spaces, dashes, dots, and
// parentheses are stripped before validation so user-entered forms like
// "+1 (555) 123-4567" are accepted.
func ParsePhone(s string) (Phone, error) {
	normalized := normalizePhone(s)
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeValidation, "phone cannot be empty")
	}
	if !strings.HasPrefix(normalized, "+") {
		return "", dErrors.New(dErrors.CodeValidation, "phone must start with +")
	}
	digits := normalized[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return "", dErrors.New(dErrors.CodeValidation, "phone must have 8 to 15 digits")
	}
	if digits[0] == '0' {
		return "", dErrors.New(dErrors.CodeValidation, "phone country code cannot start with 0")
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", dErrors.New(dErrors.CodeValidation, "phone may only contain digits after +")
		}
	}
	return Phone(normalized), nil
}

func normalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '-', '.', '(', ')':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (p Phone) String() string {
	return string(p)
}

// Masked returns the number with all but the last four digits hidden, for
// log lines that must not carry full destination numbers.
func (p Phone) Masked() string {
	s := string(p)
	if len(s) <= 4 {
		return s
	}
	return "***" + s[len(s)-4:]
}

func (p Phone) IsNil() bool {
	return p == ""
}
