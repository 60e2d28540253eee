// Package message provides the persistence backends for the message log.
package message

import (
	"context"
	"fmt"
	"sync"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	"github.com/spwotton/sms/pkg/platform/sentinel"
)

// InMemory stores the message log in memory for tests/dev. Append order is
// creation order; queries walk it backwards so results come newest first.
type InMemory struct {
	mu       sync.RWMutex
	messages []domain.Message
	index    map[pkgdomain.MessageID]int
}

// NewInMemory constructs an empty in-memory message log.
func NewInMemory() *InMemory {
	return &InMemory{
		index: make(map[pkgdomain.MessageID]int),
	}
}

func (s *InMemory) Append(_ context.Context, message domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[message.ID]; exists {
		return fmt.Errorf("message already appended: %w", sentinel.ErrConflict)
	}
	s.index[message.ID] = len(s.messages)
	s.messages = append(s.messages, message)
	return nil
}

func (s *InMemory) Get(_ context.Context, id pkgdomain.MessageID) (domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Message{}, fmt.Errorf("message not found: %w", sentinel.ErrNotFound)
	}
	return s.messages[i], nil
}

func (s *InMemory) UpdateStatus(_ context.Context, id pkgdomain.MessageID, status pkgdomain.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("message not found: %w", sentinel.ErrNotFound)
	}
	s.messages[i].Status = status
	return nil
}

func (s *InMemory) Query(_ context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = domain.DefaultQueryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]domain.Message, 0)
	for i := len(s.messages) - 1; i >= 0; i-- {
		if limit > 0 && len(matched) == limit {
			break
		}
		if filter.Matches(s.messages[i]) {
			matched = append(matched, s.messages[i])
		}
	}
	return matched, nil
}

func (s *InMemory) Stats(_ context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.Stats{TotalMessages: len(s.messages)}
	for _, m := range s.messages {
		switch m.Classification {
		case pkgdomain.ClassificationCritical:
			stats.CriticalMessages++
		case pkgdomain.ClassificationStable:
			stats.StableMessages++
		}
		switch m.Status {
		case pkgdomain.MessageStatusPending:
			stats.PendingMessages++
		case pkgdomain.MessageStatusFailed:
			stats.FailedMessages++
		}
	}
	return stats, nil
}
