package domain

import (
	"time"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

// Content length bounds enforced before a message reaches the pipeline's
// side effects.
const (
	MinContentLength = 1
	MaxContentLength = 2000
)

// Message is one processed message, inbound or outbound. ContactID is nil
// when the phone does not resolve to a known contact; unknown senders are
// still processed. Classification is assigned at creation and never changes;
// Status advances only through dispatch.
type Message struct {
	ID             pkgdomain.MessageID
	ContactID      *pkgdomain.ContactID
	Phone          pkgdomain.Phone
	Content        string
	Direction      pkgdomain.Direction
	Status         pkgdomain.MessageStatus
	Classification pkgdomain.Classification
	CreatedAt      time.Time
}

// MessageFilter narrows message log queries. Zero values mean "any".
// Limit 0 means the store default (100), negative means no limit (the
// recovery sweep needs every pending outbound row); results are newest
// first.
type MessageFilter struct {
	ContactID      *pkgdomain.ContactID
	Direction      pkgdomain.Direction
	Classification pkgdomain.Classification
	Status         pkgdomain.MessageStatus
	Limit          int
}

// DefaultQueryLimit bounds unfiltered log queries.
const DefaultQueryLimit = 100

// Matches reports whether a message satisfies the filter. Limit is not a
// match criterion.
func (f MessageFilter) Matches(m Message) bool {
	if f.ContactID != nil {
		if m.ContactID == nil || *m.ContactID != *f.ContactID {
			return false
		}
	}
	if f.Direction != "" && m.Direction != f.Direction {
		return false
	}
	if f.Classification != "" && m.Classification != f.Classification {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	return true
}

// Stats aggregates hub-wide counters for the stats endpoint.
type Stats struct {
	TotalContacts    int
	TotalMessages    int
	CriticalMessages int
	StableMessages   int
	PendingMessages  int
	FailedMessages   int
}
