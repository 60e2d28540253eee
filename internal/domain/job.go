package domain

import (
	"time"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

// SendJob is one outbound delivery attempt tracked by the dispatch queue,
// which owns it exclusively. MessageID ties the job back to the log record
// whose status it advances; at most one non-terminal job exists per message.
type SendJob struct {
	ID            pkgdomain.JobID
	MessageID     pkgdomain.MessageID
	Phone         pkgdomain.Phone
	Content       string
	AttemptCount  int
	NextAttemptAt time.Time
	State         pkgdomain.JobState
	EnqueuedAt    time.Time

	// GatewayMessageID is the upstream identifier returned on acceptance,
	// kept for delivery-report lookups.
	GatewayMessageID string

	// LastError records why the most recent attempt failed. Empty on
	// success.
	LastError string
}

// Ready reports whether the job may be leased at the given instant.
func (j SendJob) Ready(now time.Time) bool {
	return j.State == pkgdomain.JobStateQueued && !j.NextAttemptAt.After(now)
}

// Active reports whether the job still occupies its message's dispatch slot.
func (j SendJob) Active() bool {
	return !j.State.IsTerminal()
}
