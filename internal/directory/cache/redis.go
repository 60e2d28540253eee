package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
)

// Redis key prefix for recipient cache entries
const recipientKeyPrefix = "recipients:"

// Redis is a Redis-backed entry store for deployments where multiple hub
// instances should share one recipient cache. Capacity bounding is left to
// the server's eviction policy; TTL bounds growth regardless.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed entry store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

type cachedContact struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Priority     string    `json:"priority"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *Redis) Get(ctx context.Context, key string) ([]domain.Contact, bool, error) {
	payload, err := r.client.Get(ctx, recipientKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var cached []cachedContact
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, false, fmt.Errorf("decode cached contacts: %w", err)
	}

	contacts := make([]domain.Contact, 0, len(cached))
	for _, c := range cached {
		contact, err := c.toDomain()
		if err != nil {
			return nil, false, err
		}
		contacts = append(contacts, contact)
	}
	return contacts, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, contacts []domain.Contact, ttl time.Duration) error {
	cached := make([]cachedContact, 0, len(contacts))
	for _, c := range contacts {
		cached = append(cached, cachedContact{
			ID:           c.ID.String(),
			Name:         c.Name,
			Phone:        string(c.Phone),
			Priority:     c.Priority.String(),
			Relationship: c.Relationship.String(),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}

	payload, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("encode cached contacts: %w", err)
	}
	if err := r.client.Set(ctx, recipientKeyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c cachedContact) toDomain() (domain.Contact, error) {
	id, err := pkgdomain.ParseContactID(c.ID)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("cached contact id: %w", err)
	}
	return domain.Contact{
		ID:           id,
		Name:         c.Name,
		Phone:        pkgdomain.Phone(c.Phone),
		Priority:     pkgdomain.Priority(c.Priority),
		Relationship: pkgdomain.Relationship(c.Relationship),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}, nil
}
