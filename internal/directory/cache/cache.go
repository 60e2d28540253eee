// Package cache fronts the contact directory with a versioned, TTL-bounded
// recipient cache so request handlers avoid a store round-trip per message.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spwotton/sms/internal/directory/cache/metrics"
	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	"github.com/spwotton/sms/pkg/platform/sentinel"
)

const (
	// DefaultTTL bounds how stale a cached recipient list may be.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity bounds the in-memory entry store.
	DefaultCapacity = 500

	outcomeHit  = "hit"
	outcomeMiss = "miss"
)

// Loader is the directory lookup the cache fronts. The contact store
// satisfies it directly.
type Loader interface {
	List(ctx context.Context, filter domain.ContactFilter) ([]domain.Contact, error)
	GetByPhone(ctx context.Context, phone pkgdomain.Phone) (domain.Contact, error)
}

// Store holds cache entries. Implementations must be safe for concurrent
// use. A Get error is treated as a miss by the cache; a Set error is logged
// and otherwise ignored.
type Store interface {
	Get(ctx context.Context, key string) ([]domain.Contact, bool, error)
	Set(ctx context.Context, key string, contacts []domain.Contact, ttl time.Duration) error
}

// RecipientCache caches directory lookups keyed by filter plus a schema
// version tag. Bumping the version makes every old key unreachable at once;
// stale entries simply age out under TTL. Callers must treat returned
// sequences as read-only.
type RecipientCache struct {
	loader  Loader
	store   Store
	ttl     time.Duration
	version atomic.Int64
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*RecipientCache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *RecipientCache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *RecipientCache) {
		c.metrics = m
	}
}

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *RecipientCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func New(loader Loader, store Store, opts ...Option) *RecipientCache {
	c := &RecipientCache{
		loader: loader,
		store:  store,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the contacts matching the filter, from cache when fresh.
// Concurrent lookups for the same cold key coalesce into one directory call.
func (c *RecipientCache) Lookup(ctx context.Context, filter domain.ContactFilter) ([]domain.Contact, error) {
	key := c.key("f:" + filter.Key())

	if contacts, ok := c.get(ctx, key); ok {
		return contacts, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have populated the entry while we waited.
		if contacts, ok := c.get(ctx, key); ok {
			return contacts, nil
		}
		contacts, err := c.loader.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, contacts)
		return contacts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Contact), nil
}

// ResolveByPhone returns the contact owning the phone, from cache when
// fresh. A directory miss is cached too, so repeated messages from an
// unknown phone cost one lookup per TTL window; the version bump on contact
// writes keeps the window honest.
func (c *RecipientCache) ResolveByPhone(ctx context.Context, phone pkgdomain.Phone) (domain.Contact, bool, error) {
	key := c.key("p:" + string(phone))

	if contacts, ok := c.get(ctx, key); ok {
		return first(contacts)
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if contacts, ok := c.get(ctx, key); ok {
			return contacts, nil
		}
		contact, err := c.loader.GetByPhone(ctx, phone)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				empty := []domain.Contact{}
				c.set(ctx, key, empty)
				return empty, nil
			}
			return nil, err
		}
		contacts := []domain.Contact{contact}
		c.set(ctx, key, contacts)
		return contacts, nil
	})
	if err != nil {
		return domain.Contact{}, false, err
	}
	return first(result.([]domain.Contact))
}

// BumpVersion invalidates every cached entry atomically. Old keys never
// match again and age out of the store under TTL.
func (c *RecipientCache) BumpVersion() {
	v := c.version.Add(1)
	c.metrics.IncrementVersionBump()
	if c.logger != nil {
		c.logger.Debug("recipient cache invalidated", "version", v)
	}
}

// Version reports the current schema version tag.
func (c *RecipientCache) Version() int64 {
	return c.version.Load()
}

func (c *RecipientCache) key(fragment string) string {
	return "v" + strconv.FormatInt(c.version.Load(), 10) + ":" + fragment
}

func (c *RecipientCache) get(ctx context.Context, key string) ([]domain.Contact, bool) {
	contacts, ok, err := c.store.Get(ctx, key)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("recipient cache read failed", "key", key, "error", err)
		}
		c.metrics.IncrementLookup(outcomeMiss)
		return nil, false
	}
	if ok {
		c.metrics.IncrementLookup(outcomeHit)
		return contacts, true
	}
	c.metrics.IncrementLookup(outcomeMiss)
	return nil, false
}

func (c *RecipientCache) set(ctx context.Context, key string, contacts []domain.Contact) {
	if err := c.store.Set(ctx, key, contacts, c.ttl); err != nil && c.logger != nil {
		c.logger.Warn("recipient cache write failed", "key", key, "error", err)
	}
}

func first(contacts []domain.Contact) (domain.Contact, bool, error) {
	if len(contacts) == 0 {
		return domain.Contact{}, false, nil
	}
	return contacts[0], true, nil
}
