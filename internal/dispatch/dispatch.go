// Package dispatch drains outbound send jobs against the SMS gateway. The
// queue lives in process: admission is non-blocking, workers lease ready
// jobs, and every terminal transition is mirrored onto the message log.
// Crash recovery is the pipeline's startup sweep; the queue itself keeps no
// durable state.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spwotton/sms/internal/dispatch/metrics"
	"github.com/spwotton/sms/internal/domain"
	"github.com/spwotton/sms/internal/events"
	"github.com/spwotton/sms/internal/gateway"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/platform/circuit"
)

const (
	DefaultWorkers      = 2
	DefaultMaxAttempts  = 5
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultBreakerCooloff is how long an open circuit suppresses sends
	// before a probe attempt is let through.
	DefaultBreakerCooloff = 30 * time.Second
)

// Gateway is the upstream send boundary. A permanent rejection must wrap
// gateway.ErrRejected; any other error is treated as transient.
type Gateway interface {
	Send(ctx context.Context, phone pkgdomain.Phone, content string) (gateway.SendResult, error)
}

// MessageLog advances the delivery status of the message a job belongs to.
type MessageLog interface {
	UpdateStatus(ctx context.Context, id pkgdomain.MessageID, status pkgdomain.MessageStatus) error
}

// QueueStats is a point-in-time snapshot of the queue.
type QueueStats struct {
	Queued   int `json:"queued"`
	InFlight int `json:"in_flight"`
	Done     int `json:"done"`
	Dead     int `json:"dead"`
}

// Queue holds send jobs and their dispatch state machine. All fields behind
// mu; the gateway and log collaborators are called outside the lock.
type Queue struct {
	gateway        Gateway
	log            MessageLog
	policy         RetryPolicy
	maxAttempts    int
	workers        int
	pollInterval   time.Duration
	breaker        *circuit.Breaker
	breakerCooloff time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	publisher      *events.Publisher
	clock          func() time.Time

	mu              sync.Mutex
	jobs            map[pkgdomain.JobID]*domain.SendJob
	byMessage       map[pkgdomain.MessageID]pkgdomain.JobID
	order           []pkgdomain.JobID
	gatewayIDs      map[pkgdomain.MessageID]string
	done            int
	dead            int
	breakerOpenedAt time.Time
}

type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

func WithPublisher(publisher *events.Publisher) Option {
	return func(q *Queue) {
		q.publisher = publisher
	}
}

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(q *Queue) {
		q.policy = policy
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

// WithBreaker replaces the default gateway circuit breaker.
func WithBreaker(breaker *circuit.Breaker) Option {
	return func(q *Queue) {
		q.breaker = breaker
	}
}

func WithBreakerCooloff(d time.Duration) Option {
	return func(q *Queue) {
		q.breakerCooloff = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.clock = now
	}
}

func New(gw Gateway, log MessageLog, opts ...Option) *Queue {
	q := &Queue{
		gateway:        gw,
		log:            log,
		policy:         DefaultRetryPolicy(),
		maxAttempts:    DefaultMaxAttempts,
		workers:        DefaultWorkers,
		pollInterval:   DefaultPollInterval,
		breaker:        circuit.New("gateway"),
		breakerCooloff: DefaultBreakerCooloff,
		clock:          time.Now,
		jobs:           make(map[pkgdomain.JobID]*domain.SendJob),
		byMessage:      make(map[pkgdomain.MessageID]pkgdomain.JobID),
		gatewayIDs:     make(map[pkgdomain.MessageID]string),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue admits one send job and returns the stored copy immediately;
// workers pick it up asynchronously. A message that already has a queued or
// in-flight job is rejected with a conflict, which keeps re-enqueues (the
// recovery sweep, double submits) idempotent.
func (q *Queue) Enqueue(ctx context.Context, job domain.SendJob) (domain.SendJob, error) {
	if job.MessageID.IsNil() {
		return domain.SendJob{}, dErrors.New(dErrors.CodeInvalidInput, "send job requires a message id")
	}
	if job.Phone == "" {
		return domain.SendJob{}, dErrors.New(dErrors.CodeInvalidInput, "send job requires a phone")
	}

	q.mu.Lock()
	if _, active := q.byMessage[job.MessageID]; active {
		q.mu.Unlock()
		return domain.SendJob{}, dErrors.New(dErrors.CodeConflict, "dispatch already active for message")
	}

	now := q.clock()
	if job.ID.IsNil() {
		job.ID = pkgdomain.NewJobID()
	}
	job.State = pkgdomain.JobStateQueued
	job.AttemptCount = 0
	job.EnqueuedAt = now
	job.NextAttemptAt = now
	job.GatewayMessageID = ""
	job.LastError = ""

	stored := job
	q.jobs[job.ID] = &stored
	q.byMessage[job.MessageID] = job.ID
	q.order = append(q.order, job.ID)
	depth := len(q.jobs)
	q.mu.Unlock()

	q.metrics.SetQueueDepth(depth)
	if q.logger != nil {
		q.logger.DebugContext(ctx, "send job enqueued",
			"job_id", job.ID.String(),
			"message_id", job.MessageID.String(),
			"phone", job.Phone.Masked(),
		)
	}
	return job, nil
}

// GatewayMessageID returns the upstream identifier recorded when the
// gateway accepted this message's send. It is process-local: after a
// restart earlier sends have no recorded reference.
func (q *Queue) GatewayMessageID(id pkgdomain.MessageID) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	gatewayID, ok := q.gatewayIDs[id]
	return gatewayID, ok
}

// Stats snapshots the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := QueueStats{Done: q.done, Dead: q.dead}
	for _, job := range q.jobs {
		switch job.State {
		case pkgdomain.JobStateQueued:
			stats.Queued++
		case pkgdomain.JobStateInFlight:
			stats.InFlight++
		}
	}
	return stats
}

// lease hands out the next dispatchable job, marking it in flight. A phone
// with an in-flight or earlier-queued job blocks later jobs to the same
// phone, so same-destination sends stay in admission order; other phones
// interleave freely.
func (q *Queue) lease() (domain.SendJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	blocked := make(map[pkgdomain.Phone]bool)
	for _, id := range q.order {
		job := q.jobs[id]
		switch job.State {
		case pkgdomain.JobStateInFlight:
			blocked[job.Phone] = true
		case pkgdomain.JobStateQueued:
			if blocked[job.Phone] {
				continue
			}
			if job.Ready(now) {
				q.advance(job, pkgdomain.JobStateInFlight)
				return *job, true
			}
			blocked[job.Phone] = true
		}
	}
	return domain.SendJob{}, false
}

// finish retires an in-flight job as done and records the gateway reference.
func (q *Queue) finish(id pkgdomain.JobID, attempt int, gatewayMessageID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || !q.advance(job, pkgdomain.JobStateDone) {
		return
	}
	job.AttemptCount = attempt
	job.GatewayMessageID = gatewayMessageID
	q.gatewayIDs[job.MessageID] = gatewayMessageID
	q.done++
	q.retire(job)
}

// kill retires an in-flight job as dead.
func (q *Queue) kill(id pkgdomain.JobID, attempt int, lastError string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || !q.advance(job, pkgdomain.JobStateDead) {
		return
	}
	job.AttemptCount = attempt
	job.LastError = lastError
	q.dead++
	q.retire(job)
}

// requeue schedules another attempt after delay.
func (q *Queue) requeue(id pkgdomain.JobID, attempt int, delay time.Duration, lastError string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || !q.advance(job, pkgdomain.JobStateQueued) {
		return
	}
	job.AttemptCount = attempt
	job.NextAttemptAt = q.clock().Add(delay)
	job.LastError = lastError
}

// advance applies a state machine edge, refusing illegal ones.
func (q *Queue) advance(job *domain.SendJob, next pkgdomain.JobState) bool {
	if !job.State.CanTransitionTo(next) {
		if q.logger != nil {
			q.logger.Error("illegal job transition",
				"job_id", job.ID.String(),
				"from", job.State.String(),
				"to", next.String(),
			)
		}
		return false
	}
	job.State = next
	return true
}

// retire drops a terminal job from the active structures. Caller holds mu.
func (q *Queue) retire(job *domain.SendJob) {
	delete(q.jobs, job.ID)
	delete(q.byMessage, job.MessageID)
	for i, id := range q.order {
		if id == job.ID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	q.metrics.SetQueueDepth(len(q.jobs))
}
