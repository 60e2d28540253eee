package domain

import (
	"time"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

// Contact is a known recipient in the directory. Phone is unique across all
// contacts; priority and relationship are closed enumerations validated at
// the boundary.
type Contact struct {
	ID           pkgdomain.ContactID
	Name         string
	Phone        pkgdomain.Phone
	Priority     pkgdomain.Priority
	Relationship pkgdomain.Relationship
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContactFilter narrows directory listings. Zero values mean "any".
type ContactFilter struct {
	Priority     pkgdomain.Priority
	Relationship pkgdomain.Relationship
}

// IsZero reports whether the filter matches everything.
func (f ContactFilter) IsZero() bool {
	return f.Priority == "" && f.Relationship == ""
}

// Key is the canonical cache-key fragment for this filter. Stable across
// processes so memory and Redis cache backends agree on entries.
func (f ContactFilter) Key() string {
	if f.IsZero() {
		return "all"
	}
	return "p=" + f.Priority.String() + ";r=" + f.Relationship.String()
}

// Matches reports whether a contact satisfies the filter.
func (f ContactFilter) Matches(c Contact) bool {
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.Relationship != "" && c.Relationship != f.Relationship {
		return false
	}
	return true
}
