// Package pipeline runs every message through the same path: validate,
// resolve the phone against the contact directory, classify, append to the
// message log, and hand outbound messages to dispatch. Inbound and outbound
// traffic differ only in that last step, so handlers stay thin and the
// ordering guarantees live in one place.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/spwotton/sms/internal/domain"
	"github.com/spwotton/sms/internal/events"
	"github.com/spwotton/sms/internal/pipeline/metrics"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/requestcontext"
)

var tracer = otel.Tracer("sms/pipeline")

// Resolver maps a phone number to a known contact. The recipient cache
// satisfies it; found=false with a nil error means the phone is simply not
// in the directory.
type Resolver interface {
	ResolveByPhone(ctx context.Context, phone pkgdomain.Phone) (domain.Contact, bool, error)
}

// Classifier labels message text. Classification never fails; degraded
// paths surface through the result's Source.
type Classifier interface {
	Classify(ctx context.Context, text string) domain.ClassificationResult
}

// MessageLog persists new messages and serves the recovery sweep.
type MessageLog interface {
	Append(ctx context.Context, msg domain.Message) (pkgdomain.MessageID, error)
	Query(ctx context.Context, filter domain.MessageFilter) ([]domain.Message, error)
}

// Dispatcher admits outbound send jobs. Re-admitting a message with an
// active job must fail with a conflict.
type Dispatcher interface {
	Enqueue(ctx context.Context, job domain.SendJob) (domain.SendJob, error)
}

// Service is the message processing pipeline.
type Service struct {
	resolver   Resolver
	classifier Classifier
	log        MessageLog
	dispatcher Dispatcher

	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher *events.Publisher
	clock     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p *events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = now
	}
}

func New(resolver Resolver, classifier Classifier, log MessageLog, dispatcher Dispatcher, opts ...Option) *Service {
	s := &Service{
		resolver:   resolver,
		classifier: classifier,
		log:        log,
		dispatcher: dispatcher,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process runs one message through the pipeline and returns the created
// record. Validation failures return before any side effect. Outbound
// messages come back at status pending with a send job already admitted;
// delivery proceeds on the dispatch workers even if the caller's context is
// canceled after this returns.
func (s *Service) Process(ctx context.Context, rawPhone, content string, direction pkgdomain.Direction) (domain.Message, error) {
	start := s.clock()

	ctx, span := tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("direction", direction.String()),
	))
	defer span.End()

	phone, err := pkgdomain.ParsePhone(rawPhone)
	if err != nil {
		span.RecordError(err)
		return domain.Message{}, err
	}
	length := utf8.RuneCountInString(content)
	if length < domain.MinContentLength || length > domain.MaxContentLength {
		err := dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("content must be between %d and %d characters", domain.MinContentLength, domain.MaxContentLength))
		span.RecordError(err)
		return domain.Message{}, err
	}
	if !direction.IsValid() {
		err := dErrors.New(dErrors.CodeValidation, "direction must be inbound or outbound")
		span.RecordError(err)
		return domain.Message{}, err
	}

	events.Log(ctx, s.logger, s.publisher, events.CategoryMessage, events.ActionMessageReceived,
		"phone", phone.Masked(),
		"detail", direction.String(),
		"content_length", length,
	)

	contactID := s.resolveContact(ctx, phone)
	result := s.classify(ctx, phone, content)

	msg := domain.Message{
		ContactID:      contactID,
		Phone:          phone,
		Content:        content,
		Direction:      direction,
		Classification: result.Label,
		CreatedAt:      requestcontext.Now(ctx),
	}

	appendCtx, appendSpan := tracer.Start(ctx, "pipeline.append")
	id, err := s.log.Append(appendCtx, msg)
	appendSpan.End()
	if err != nil {
		span.RecordError(err)
		return domain.Message{}, err
	}
	msg.ID = id
	msg.Status = pkgdomain.MessageStatusPending

	if direction == pkgdomain.DirectionOutbound {
		s.enqueueSend(ctx, msg)
	}

	s.metrics.IncrementProcessed(direction.String(), result.Label.String())
	s.metrics.ObserveDuration(s.clock().Sub(start))
	return msg, nil
}

// resolveContact is best-effort: a directory outage degrades to an
// unresolved message rather than failing the pipeline.
func (s *Service) resolveContact(ctx context.Context, phone pkgdomain.Phone) *pkgdomain.ContactID {
	ctx, span := tracer.Start(ctx, "pipeline.resolve")
	defer span.End()

	contact, found, err := s.resolver.ResolveByPhone(ctx, phone)
	if err != nil {
		span.RecordError(err)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "contact resolution failed, continuing unresolved",
				"phone", phone.Masked(),
				"error", err,
			)
		}
		return nil
	}
	if !found {
		return nil
	}
	id := contact.ID
	span.SetAttributes(attribute.String("contact_id", id.String()))
	return &id
}

func (s *Service) classify(ctx context.Context, phone pkgdomain.Phone, content string) domain.ClassificationResult {
	ctx, span := tracer.Start(ctx, "pipeline.classify")
	result := s.classifier.Classify(ctx, content)
	span.SetAttributes(
		attribute.String("label", result.Label.String()),
		attribute.String("source", result.Source.String()),
	)
	span.End()

	events.Log(ctx, s.logger, s.publisher, events.CategoryMessage, events.ActionMessageClassified,
		"phone", phone.Masked(),
		"label", result.Label.String(),
		"detail", result.Source.String(),
		"confidence", result.Confidence,
	)
	return result
}

// enqueueSend admits the send job for a freshly appended message. Admission
// failure is not surfaced to the caller: the message is already in the log
// at pending and the startup sweep closes the gap.
func (s *Service) enqueueSend(ctx context.Context, msg domain.Message) {
	ctx, span := tracer.Start(ctx, "pipeline.enqueue")
	defer span.End()

	job, err := s.dispatcher.Enqueue(ctx, domain.SendJob{
		MessageID: msg.ID,
		Phone:     msg.Phone,
		Content:   msg.Content,
	})
	if err != nil {
		span.RecordError(err)
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "dispatch admission failed, message left pending",
				"message_id", msg.ID.String(),
				"phone", msg.Phone.Masked(),
				"error", err,
			)
		}
		return
	}

	events.Log(ctx, s.logger, s.publisher, events.CategoryMessage, events.ActionMessageEnqueued,
		"message_id", msg.ID.String(),
		"job_id", job.ID.String(),
		"phone", msg.Phone.Masked(),
		"status", msg.Status.String(),
	)
}

// RecoverPending re-admits outbound messages left pending by a crash
// between append and enqueue or mid-dispatch. Admission dedupe makes the
// sweep idempotent, so it is safe to run while traffic is flowing. Returns
// how many jobs were admitted.
func (s *Service) RecoverPending(ctx context.Context) (int, error) {
	pending, err := s.log.Query(ctx, domain.MessageFilter{
		Direction: pkgdomain.DirectionOutbound,
		Status:    pkgdomain.MessageStatusPending,
		Limit:     -1,
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "recovery sweep query failed")
	}

	recovered := 0
	for _, msg := range pending {
		job, err := s.dispatcher.Enqueue(ctx, domain.SendJob{
			MessageID: msg.ID,
			Phone:     msg.Phone,
			Content:   msg.Content,
		})
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) {
				continue
			}
			return recovered, dErrors.Wrap(err, dErrors.CodeInternal, "recovery sweep enqueue failed")
		}
		recovered++
		s.metrics.IncrementRecovered()
		events.Log(ctx, s.logger, s.publisher, events.CategoryMessage, events.ActionMessageEnqueued,
			"message_id", msg.ID.String(),
			"job_id", job.ID.String(),
			"phone", msg.Phone.Masked(),
			"status", msg.Status.String(),
			"detail", "recovered",
		)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "recovery sweep complete",
			"pending", len(pending),
			"recovered", recovered,
		)
	}
	return recovered, nil
}
