// Package message owns the durable log of processed messages and its
// queries. It never classifies or dispatches; it records what the pipeline
// and dispatch decided.
package message

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/platform/sentinel"
	"github.com/spwotton/sms/pkg/requestcontext"
)

// ContactCounter reports the directory size for the stats snapshot.
type ContactCounter interface {
	CountContacts(ctx context.Context) (int, error)
}

type Service struct {
	store    Store
	contacts ContactCounter
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithContactCounter(contacts ContactCounter) Option {
	return func(s *Service) {
		s.contacts = contacts
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append persists a message, assigning identity, pending status, and a
// creation timestamp when the caller left them zero. Returns the message ID.
func (s *Service) Append(ctx context.Context, msg domain.Message) (pkgdomain.MessageID, error) {
	if msg.ID.IsNil() {
		msg.ID = pkgdomain.NewMessageID()
	}
	if msg.Status == "" {
		msg.Status = pkgdomain.MessageStatusPending
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = requestcontext.Now(ctx)
	}

	if err := s.store.Append(ctx, msg); err != nil {
		return pkgdomain.MessageID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append message")
	}
	return msg.ID, nil
}

// Get loads one message by raw ID.
func (s *Service) Get(ctx context.Context, rawID string) (domain.Message, error) {
	id, err := pkgdomain.ParseMessageID(rawID)
	if err != nil {
		return domain.Message{}, err
	}

	msg, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Message{}, dErrors.New(dErrors.CodeNotFound, "message not found")
		}
		return domain.Message{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load message")
	}
	return msg, nil
}

// UpdateStatus advances a message along the delivery state machine.
// Errors: CodeNotFound for unknown IDs, CodeConflict for illegal edges
// (delivered and failed are terminal; pending cannot jump to delivered).
func (s *Service) UpdateStatus(ctx context.Context, id pkgdomain.MessageID, next pkgdomain.MessageStatus) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "message not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load message")
	}

	if !current.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeConflict,
			"illegal status transition from "+current.Status.String()+" to "+next.String())
	}

	if err := s.store.UpdateStatus(ctx, id, next); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "message not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update message status")
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "message status updated",
			"message_id", id.String(),
			"from", current.Status.String(),
			"to", next.String(),
		)
	}
	return nil
}

// ListParams carries the raw query fields of a log listing request.
type ListParams struct {
	ContactID      string
	Direction      string
	Classification string
	Status         string
	Limit          string
}

func (p ListParams) parse() (domain.MessageFilter, error) {
	var filter domain.MessageFilter
	if p.ContactID != "" {
		id, err := pkgdomain.ParseContactID(p.ContactID)
		if err != nil {
			return domain.MessageFilter{}, err
		}
		filter.ContactID = &id
	}
	if p.Direction != "" {
		direction, err := pkgdomain.ParseDirection(p.Direction)
		if err != nil {
			return domain.MessageFilter{}, err
		}
		filter.Direction = direction
	}
	if p.Classification != "" {
		classification, err := pkgdomain.ParseClassification(p.Classification)
		if err != nil {
			return domain.MessageFilter{}, err
		}
		filter.Classification = classification
	}
	if p.Status != "" {
		status, err := pkgdomain.ParseMessageStatus(p.Status)
		if err != nil {
			return domain.MessageFilter{}, err
		}
		filter.Status = status
	}
	if p.Limit != "" {
		limit, err := strconv.Atoi(p.Limit)
		if err != nil || limit < 1 {
			return domain.MessageFilter{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		filter.Limit = limit
	}
	return filter, nil
}

// List returns log entries matching the raw request parameters, newest
// first.
func (s *Service) List(ctx context.Context, params ListParams) ([]domain.Message, error) {
	filter, err := params.parse()
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, filter)
}

// Query returns log entries matching an already-typed filter, newest first.
func (s *Service) Query(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error) {
	messages, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query messages")
	}
	return messages, nil
}

// Stats snapshots hub-wide counters. TotalContacts comes from the directory
// when a counter is wired; it stays zero otherwise.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return domain.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate message stats")
	}

	if s.contacts != nil {
		total, err := s.contacts.CountContacts(ctx)
		if err != nil {
			return domain.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count contacts")
		}
		stats.TotalContacts = total
	}
	return stats, nil
}
