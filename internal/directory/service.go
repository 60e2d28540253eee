// Package directory manages the contact directory: the known recipients a
// message may resolve to, keyed by unique phone number.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spwotton/sms/internal/domain"
	"github.com/spwotton/sms/internal/events"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/platform/sentinel"
	"github.com/spwotton/sms/pkg/requestcontext"
)

const maxNameLength = 120

// CacheInvalidator bumps the recipient cache schema version so directory
// mutations become visible to cached lookups without a sweep.
type CacheInvalidator interface {
	BumpVersion()
}

type Service struct {
	store     Store
	cache     CacheInvalidator
	logger    *slog.Logger
	publisher *events.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithCacheInvalidator(cache CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithPublisher(publisher *events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ContactInput carries the raw fields of a create or full-update request.
// Priority and Relationship default to medium and other when empty.
type ContactInput struct {
	Name         string
	Phone        string
	Priority     string
	Relationship string
}

func (in ContactInput) parse() (string, pkgdomain.Phone, pkgdomain.Priority, pkgdomain.Relationship, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", "", "", "", dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return "", "", "", "", dErrors.New(dErrors.CodeValidation, "name is too long")
	}

	phone, err := pkgdomain.ParsePhone(in.Phone)
	if err != nil {
		return "", "", "", "", err
	}

	priority := pkgdomain.PriorityMedium
	if in.Priority != "" {
		if priority, err = pkgdomain.ParsePriority(in.Priority); err != nil {
			return "", "", "", "", err
		}
	}

	relationship := pkgdomain.RelationshipOther
	if in.Relationship != "" {
		if relationship, err = pkgdomain.ParseRelationship(in.Relationship); err != nil {
			return "", "", "", "", err
		}
	}

	return name, phone, priority, relationship, nil
}

// CreateContact validates the input and persists a new contact.
// Errors: CodeValidation/CodeInvalidInput for bad fields, CodeConflict when
// the phone number is already registered.
func (s *Service) CreateContact(ctx context.Context, in ContactInput) (domain.Contact, error) {
	name, phone, priority, relationship, err := in.parse()
	if err != nil {
		return domain.Contact{}, err
	}

	now := requestcontext.Now(ctx)
	contact := domain.Contact{
		ID:           pkgdomain.NewContactID(),
		Name:         name,
		Phone:        phone,
		Priority:     priority,
		Relationship: relationship,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, contact); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domain.Contact{}, dErrors.New(dErrors.CodeConflict, "phone number already registered")
		}
		return domain.Contact{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create contact")
	}

	s.invalidateCache()
	events.Log(ctx, s.logger, s.publisher, events.CategoryContact, events.ActionContactCreated,
		"contact_id", contact.ID.String(),
		"phone", contact.Phone.Masked(),
	)
	return contact, nil
}

// GetContact loads one contact by ID.
func (s *Service) GetContact(ctx context.Context, rawID string) (domain.Contact, error) {
	id, err := pkgdomain.ParseContactID(rawID)
	if err != nil {
		return domain.Contact{}, err
	}

	contact, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Contact{}, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return domain.Contact{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contact")
	}
	return contact, nil
}

// ResolveByPhone finds the contact owning a phone number. A miss is reported
// with sentinel.ErrNotFound untranslated so the pipeline can treat unknown
// senders as a non-error.
func (s *Service) ResolveByPhone(ctx context.Context, phone pkgdomain.Phone) (domain.Contact, error) {
	contact, err := s.store.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Contact{}, err
		}
		return domain.Contact{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve phone")
	}
	return contact, nil
}

// ListContacts returns contacts matching the optional priority and
// relationship filters, most urgent priority first.
func (s *Service) ListContacts(ctx context.Context, rawPriority, rawRelationship string) ([]domain.Contact, error) {
	filter, err := parseFilter(rawPriority, rawRelationship)
	if err != nil {
		return nil, err
	}

	contacts, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts")
	}
	return contacts, nil
}

func parseFilter(rawPriority, rawRelationship string) (domain.ContactFilter, error) {
	var filter domain.ContactFilter
	if rawPriority != "" {
		priority, err := pkgdomain.ParsePriority(rawPriority)
		if err != nil {
			return domain.ContactFilter{}, err
		}
		filter.Priority = priority
	}
	if rawRelationship != "" {
		relationship, err := pkgdomain.ParseRelationship(rawRelationship)
		if err != nil {
			return domain.ContactFilter{}, err
		}
		filter.Relationship = relationship
	}
	return filter, nil
}

// UpdateContact replaces all mutable fields of a contact.
// Errors: CodeNotFound for unknown IDs, CodeConflict when the new phone
// belongs to another contact.
func (s *Service) UpdateContact(ctx context.Context, rawID string, in ContactInput) (domain.Contact, error) {
	id, err := pkgdomain.ParseContactID(rawID)
	if err != nil {
		return domain.Contact{}, err
	}
	name, phone, priority, relationship, err := in.parse()
	if err != nil {
		return domain.Contact{}, err
	}

	contact, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Contact{}, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return domain.Contact{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load contact")
	}

	contact.Name = name
	contact.Phone = phone
	contact.Priority = priority
	contact.Relationship = relationship
	contact.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, contact); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return domain.Contact{}, dErrors.New(dErrors.CodeNotFound, "contact not found")
		case errors.Is(err, sentinel.ErrConflict):
			return domain.Contact{}, dErrors.New(dErrors.CodeConflict, "phone number already registered")
		default:
			return domain.Contact{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update contact")
		}
	}

	s.invalidateCache()
	events.Log(ctx, s.logger, s.publisher, events.CategoryContact, events.ActionContactUpdated,
		"contact_id", contact.ID.String(),
		"phone", contact.Phone.Masked(),
	)
	return contact, nil
}

// DeleteContact removes a contact. Messages keep their row with contact_id
// cleared by the schema's ON DELETE SET NULL.
func (s *Service) DeleteContact(ctx context.Context, rawID string) error {
	id, err := pkgdomain.ParseContactID(rawID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete contact")
	}

	s.invalidateCache()
	events.Log(ctx, s.logger, s.publisher, events.CategoryContact, events.ActionContactDeleted,
		"contact_id", id.String(),
	)
	return nil
}

// CountContacts reports the directory size for the stats snapshot.
func (s *Service) CountContacts(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count contacts")
	}
	return count, nil
}

func (s *Service) invalidateCache() {
	if s.cache != nil {
		s.cache.BumpVersion()
	}
}
