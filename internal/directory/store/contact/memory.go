// Package contact provides the persistence backends for the directory.
package contact

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	"github.com/spwotton/sms/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the requested contact does not exist
// - Return ErrConflict when the phone number belongs to another contact
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemory stores contacts in memory for tests/dev.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[pkgdomain.ContactID]domain.Contact
	byPhone map[pkgdomain.Phone]pkgdomain.ContactID
}

// NewInMemory constructs an empty in-memory contact store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[pkgdomain.ContactID]domain.Contact),
		byPhone: make(map[pkgdomain.Phone]pkgdomain.ContactID),
	}
}

func (s *InMemory) Create(_ context.Context, contact domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byPhone[contact.Phone]; taken {
		return fmt.Errorf("phone already registered: %w", sentinel.ErrConflict)
	}
	s.byID[contact.ID] = contact
	s.byPhone[contact.Phone] = contact.ID
	return nil
}

func (s *InMemory) Get(_ context.Context, id pkgdomain.ContactID) (domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contact, ok := s.byID[id]
	if !ok {
		return domain.Contact{}, fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
	}
	return contact, nil
}

func (s *InMemory) GetByPhone(_ context.Context, phone pkgdomain.Phone) (domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPhone[phone]
	if !ok {
		return domain.Contact{}, fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
	}
	return s.byID[id], nil
}

func (s *InMemory) List(_ context.Context, filter domain.ContactFilter) ([]domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contacts := make([]domain.Contact, 0, len(s.byID))
	for _, contact := range s.byID {
		if filter.Matches(contact) {
			contacts = append(contacts, contact)
		}
	}
	sort.Slice(contacts, func(i, j int) bool {
		if contacts[i].Priority.Rank() != contacts[j].Priority.Rank() {
			return contacts[i].Priority.Rank() < contacts[j].Priority.Rank()
		}
		return contacts[i].Name < contacts[j].Name
	})
	return contacts, nil
}

func (s *InMemory) Update(_ context.Context, contact domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[contact.ID]
	if !ok {
		return fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
	}
	if owner, taken := s.byPhone[contact.Phone]; taken && owner != contact.ID {
		return fmt.Errorf("phone already registered: %w", sentinel.ErrConflict)
	}
	if current.Phone != contact.Phone {
		delete(s.byPhone, current.Phone)
	}
	s.byID[contact.ID] = contact
	s.byPhone[contact.Phone] = contact.ID
	return nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *InMemory) Delete(_ context.Context, id pkgdomain.ContactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("contact not found: %w", sentinel.ErrNotFound)
	}
	delete(s.byID, id)
	delete(s.byPhone, contact.Phone)
	return nil
}
