package directory

import (
	"context"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

// Store is the contact persistence boundary. Implementations signal facts
// with sentinel errors (ErrNotFound, ErrConflict); the service translates
// them into domain errors.
type Store interface {
	Create(ctx context.Context, contact domain.Contact) error
	Get(ctx context.Context, id pkgdomain.ContactID) (domain.Contact, error)
	GetByPhone(ctx context.Context, phone pkgdomain.Phone) (domain.Contact, error)
	// List returns contacts matching the filter ordered by priority
	// (critical first), then name.
	List(ctx context.Context, filter domain.ContactFilter) ([]domain.Contact, error)
	Update(ctx context.Context, contact domain.Contact) error
	Delete(ctx context.Context, id pkgdomain.ContactID) error
	Count(ctx context.Context) (int, error)
}
