package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spwotton/sms/internal/domain"
)

type memoryEntry struct {
	contacts  []domain.Contact
	expiresAt time.Time
}

// Memory is an LRU-bounded in-process entry store. Expiry is checked on
// read; an expired entry counts as a miss and is dropped.
type Memory struct {
	entries *lru.Cache[string, memoryEntry]
	clock   func() time.Time
}

type MemoryOption func(*Memory)

// WithMemoryClock sets the clock function for testability.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewMemory constructs an in-memory entry store holding at most capacity
// entries, evicting least-recently-used on overflow.
func NewMemory(capacity int, opts ...MemoryOption) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, _ := lru.New[string, memoryEntry](capacity)
	m := &Memory{
		entries: entries,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]domain.Contact, bool, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if m.clock().After(entry.expiresAt) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return entry.contacts, true, nil
}

func (m *Memory) Set(_ context.Context, key string, contacts []domain.Contact, ttl time.Duration) error {
	m.entries.Add(key, memoryEntry{
		contacts:  contacts,
		expiresAt: m.clock().Add(ttl),
	})
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	return m.entries.Len()
}
