package directory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	contactStore "github.com/spwotton/sms/internal/directory/store/contact"
	"github.com/spwotton/sms/internal/events"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/platform/sentinel"
	"github.com/spwotton/sms/pkg/requestcontext"
)

type countingInvalidator struct {
	mu    sync.Mutex
	bumps int
}

func (c *countingInvalidator) BumpVersion() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumps++
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bumps
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

type DirectoryServiceSuite struct {
	suite.Suite
	store   *contactStore.InMemory
	cache   *countingInvalidator
	sink    *recordingSink
	service *Service
	ctx     context.Context
}

func TestDirectoryServiceSuite(t *testing.T) {
	suite.Run(t, new(DirectoryServiceSuite))
}

func (s *DirectoryServiceSuite) SetupTest() {
	s.store = contactStore.NewInMemory()
	s.cache = &countingInvalidator{}
	s.sink = &recordingSink{}
	s.service = New(s.store,
		WithCacheInvalidator(s.cache),
		WithPublisher(events.NewPublisher(s.sink)),
	)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func validInput() ContactInput {
	return ContactInput{
		Name:         "Alice",
		Phone:        "+15550300001",
		Priority:     "high",
		Relationship: "parent",
	}
}

// =============================================================================
// Create Tests
// =============================================================================

func (s *DirectoryServiceSuite) TestCreateContact() {
	s.Run("creates contact with parsed fields", func() {
		contact, err := s.service.CreateContact(s.ctx, validInput())
		s.Require().NoError(err)

		s.False(contact.ID.IsNil())
		s.Equal("Alice", contact.Name)
		s.Equal(pkgdomain.Phone("+15550300001"), contact.Phone)
		s.Equal(pkgdomain.PriorityHigh, contact.Priority)
		s.Equal(pkgdomain.RelationshipParent, contact.Relationship)
		s.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), contact.CreatedAt)
		s.Equal(contact.CreatedAt, contact.UpdatedAt)
	})

	s.Run("defaults priority and relationship when empty", func() {
		contact, err := s.service.CreateContact(s.ctx, ContactInput{
			Name:  "Bob",
			Phone: "+15550300002",
		})
		s.Require().NoError(err)
		s.Equal(pkgdomain.PriorityMedium, contact.Priority)
		s.Equal(pkgdomain.RelationshipOther, contact.Relationship)
	})

	s.Run("rejects empty name", func() {
		in := validInput()
		in.Name = "   "
		in.Phone = "+15550300003"
		_, err := s.service.CreateContact(s.ctx, in)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeValidation, "name is required"))
	})

	s.Run("rejects invalid phone", func() {
		in := validInput()
		in.Phone = "not-a-phone"
		_, err := s.service.CreateContact(s.ctx, in)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects unknown priority", func() {
		in := validInput()
		in.Phone = "+15550300004"
		in.Priority = "extreme"
		_, err := s.service.CreateContact(s.ctx, in)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeInvalidInput, "invalid priority"))
	})

	s.Run("rejects unknown relationship", func() {
		in := validInput()
		in.Phone = "+15550300005"
		in.Relationship = "acquaintance"
		_, err := s.service.CreateContact(s.ctx, in)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeInvalidInput, "invalid relationship"))
	})

	s.Run("maps duplicate phone to conflict", func() {
		in := validInput()
		in.Phone = "+15550300006"
		_, err := s.service.CreateContact(s.ctx, in)
		s.Require().NoError(err)

		in.Name = "Impostor"
		_, err = s.service.CreateContact(s.ctx, in)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeConflict, "phone number already registered"))
	})

	s.Run("bumps cache version and emits event", func() {
		before := s.cache.count()
		in := validInput()
		in.Phone = "+15550300007"
		contact, err := s.service.CreateContact(s.ctx, in)
		s.Require().NoError(err)

		s.Equal(before+1, s.cache.count())

		emitted := s.sink.all()
		s.Require().NotEmpty(emitted)
		last := emitted[len(emitted)-1]
		s.Equal(events.ActionContactCreated, last.Action)
		s.Equal(contact.ID.String(), last.ContactID)
		s.Equal(contact.Phone.Masked(), last.Phone)
	})
}

// =============================================================================
// Get / List Tests
// =============================================================================

func (s *DirectoryServiceSuite) TestGetContact() {
	s.Run("returns stored contact", func() {
		created, err := s.service.CreateContact(s.ctx, validInput())
		s.Require().NoError(err)

		found, err := s.service.GetContact(s.ctx, created.ID.String())
		s.Require().NoError(err)
		s.Equal(created.ID, found.ID)
	})

	s.Run("maps unknown ID to not found", func() {
		_, err := s.service.GetContact(s.ctx, pkgdomain.NewContactID().String())
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "contact not found"))
	})

	s.Run("rejects malformed ID", func() {
		_, err := s.service.GetContact(s.ctx, "not-a-uuid")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *DirectoryServiceSuite) TestResolveByPhone() {
	s.Run("resolves known phone", func() {
		created, err := s.service.CreateContact(s.ctx, validInput())
		s.Require().NoError(err)

		found, err := s.service.ResolveByPhone(s.ctx, created.Phone)
		s.Require().NoError(err)
		s.Equal(created.ID, found.ID)
	})

	s.Run("reports miss with sentinel", func() {
		_, err := s.service.ResolveByPhone(s.ctx, pkgdomain.Phone("+15559999999"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *DirectoryServiceSuite) TestListContacts() {
	seed := func(name, phone, priority string) {
		_, err := s.service.CreateContact(s.ctx, ContactInput{
			Name: name, Phone: phone, Priority: priority,
		})
		s.Require().NoError(err)
	}

	s.Run("lists all most urgent first", func() {
		seed("Adam", "+15550300020", "low")
		seed("Zoe", "+15550300021", "critical")
		seed("Ben", "+15550300022", "high")

		contacts, err := s.service.ListContacts(s.ctx, "", "")
		s.Require().NoError(err)
		s.Require().Len(contacts, 3)
		s.Equal("Zoe", contacts[0].Name)
		s.Equal("Ben", contacts[1].Name)
		s.Equal("Adam", contacts[2].Name)
	})

	s.Run("filters by priority", func() {
		contacts, err := s.service.ListContacts(s.ctx, "critical", "")
		s.Require().NoError(err)
		s.Require().Len(contacts, 1)
		s.Equal("Zoe", contacts[0].Name)
	})

	s.Run("rejects invalid filter values", func() {
		_, err := s.service.ListContacts(s.ctx, "extreme", "")
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeInvalidInput, "invalid priority"))

		_, err = s.service.ListContacts(s.ctx, "", "acquaintance")
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeInvalidInput, "invalid relationship"))
	})
}

// =============================================================================
// Update Tests
// =============================================================================

func (s *DirectoryServiceSuite) TestUpdateContact() {
	s.Run("replaces mutable fields and advances UpdatedAt", func() {
		created, err := s.service.CreateContact(s.ctx, validInput())
		s.Require().NoError(err)

		later := requestcontext.WithTime(context.Background(), time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
		updated, err := s.service.UpdateContact(later, created.ID.String(), ContactInput{
			Name:         "Alice Renamed",
			Phone:        "+15550300030",
			Priority:     "critical",
			Relationship: "spouse",
		})
		s.Require().NoError(err)

		s.Equal(created.ID, updated.ID)
		s.Equal("Alice Renamed", updated.Name)
		s.Equal(pkgdomain.Phone("+15550300030"), updated.Phone)
		s.Equal(pkgdomain.PriorityCritical, updated.Priority)
		s.Equal(created.CreatedAt, updated.CreatedAt)
		s.Equal(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), updated.UpdatedAt)
	})

	s.Run("maps unknown ID to not found", func() {
		_, err := s.service.UpdateContact(s.ctx, pkgdomain.NewContactID().String(), validInput())
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "contact not found"))
	})

	s.Run("maps stolen phone to conflict", func() {
		first, err := s.service.CreateContact(s.ctx, ContactInput{Name: "First", Phone: "+15550300031"})
		s.Require().NoError(err)
		second, err := s.service.CreateContact(s.ctx, ContactInput{Name: "Second", Phone: "+15550300032"})
		s.Require().NoError(err)

		_, err = s.service.UpdateContact(s.ctx, second.ID.String(), ContactInput{
			Name:  "Second",
			Phone: string(first.Phone),
		})
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeConflict, "phone number already registered"))
	})

	s.Run("emits update event", func() {
		created, err := s.service.CreateContact(s.ctx, ContactInput{Name: "Evented", Phone: "+15550300033"})
		s.Require().NoError(err)

		_, err = s.service.UpdateContact(s.ctx, created.ID.String(), ContactInput{
			Name:  "Evented Again",
			Phone: "+15550300033",
		})
		s.Require().NoError(err)

		emitted := s.sink.all()
		s.Require().NotEmpty(emitted)
		s.Equal(events.ActionContactUpdated, emitted[len(emitted)-1].Action)
	})
}

// =============================================================================
// Delete Tests
// =============================================================================

func (s *DirectoryServiceSuite) TestDeleteContact() {
	s.Run("deletes and emits event", func() {
		created, err := s.service.CreateContact(s.ctx, validInput())
		s.Require().NoError(err)

		bumpsBefore := s.cache.count()
		s.Require().NoError(s.service.DeleteContact(s.ctx, created.ID.String()))
		s.Equal(bumpsBefore+1, s.cache.count())

		_, err = s.service.GetContact(s.ctx, created.ID.String())
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "contact not found"))

		emitted := s.sink.all()
		s.Require().NotEmpty(emitted)
		last := emitted[len(emitted)-1]
		s.Equal(events.ActionContactDeleted, last.Action)
		s.Equal(created.ID.String(), last.ContactID)
	})

	s.Run("maps unknown ID to not found", func() {
		err := s.service.DeleteContact(s.ctx, pkgdomain.NewContactID().String())
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeNotFound, "contact not found"))
	})
}

// =============================================================================
// Optional Collaborator Tests
// =============================================================================

func (s *DirectoryServiceSuite) TestWorksWithoutCacheAndPublisher() {
	bare := New(contactStore.NewInMemory())

	contact, err := bare.CreateContact(s.ctx, validInput())
	s.Require().NoError(err)
	s.Require().NoError(bare.DeleteContact(s.ctx, contact.ID.String()))
}

func (s *DirectoryServiceSuite) TestCountContacts() {
	count, err := s.service.CountContacts(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	_, err = s.service.CreateContact(s.ctx, validInput())
	s.Require().NoError(err)

	count, err = s.service.CountContacts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}
