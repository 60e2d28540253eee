package message

import (
	"context"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

// Store is the durable append-only message log.
//
// Error contract: Get and UpdateStatus return sentinel.ErrNotFound for
// unknown IDs; infrastructure failures are returned wrapped.
type Store interface {
	Append(ctx context.Context, message domain.Message) error
	Get(ctx context.Context, id pkgdomain.MessageID) (domain.Message, error)
	UpdateStatus(ctx context.Context, id pkgdomain.MessageID, status pkgdomain.MessageStatus) error

	// Query returns messages matching the filter, newest first. Limit 0
	// applies the default, negative disables the bound.
	Query(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error)

	// Stats aggregates message counters. TotalContacts is left zero; the
	// service fills it from the directory.
	Stats(ctx context.Context) (domain.Stats, error)
}
