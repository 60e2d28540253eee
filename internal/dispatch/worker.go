package dispatch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/spwotton/sms/internal/domain"
	"github.com/spwotton/sms/internal/events"
	"github.com/spwotton/sms/internal/gateway"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

var tracer = otel.Tracer("sms/dispatch")

// Run starts the worker pool and blocks until ctx is canceled. A worker
// mid-attempt finishes that attempt before stopping; queued jobs stay
// queued and are lost with the process (the recovery sweep re-creates them
// from pending log rows on the next start).
func (q *Queue) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			return q.worker(ctx)
		})
	}
	return g.Wait()
}

func (q *Queue) worker(ctx context.Context) error {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, ok := q.lease()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			continue
		}
		q.attempt(ctx, job)
	}
}

// attempt runs one gateway call for a leased job and applies the resulting
// transition. A rejection counts as breaker success: the gateway answered,
// the destination is what failed.
func (q *Queue) attempt(ctx context.Context, job domain.SendJob) {
	attempt := job.AttemptCount + 1

	ctx, span := tracer.Start(ctx, "dispatch.attempt", trace.WithAttributes(
		attribute.String("message_id", job.MessageID.String()),
		attribute.String("job_id", job.ID.String()),
		attribute.Int("attempt", attempt),
	))
	defer span.End()

	if q.shortCircuited() {
		q.metrics.IncrementAttempt("short_circuit")
		q.retryOrKill(ctx, job, attempt, dErrors.New(dErrors.CodeUnavailable, "gateway circuit open"))
		return
	}

	result, err := q.gateway.Send(ctx, job.Phone, job.Content)
	switch {
	case err == nil:
		q.recordBreakerSuccess()
		q.metrics.IncrementAttempt("accepted")
		q.succeed(ctx, job, attempt, result.GatewayMessageID)
	case errors.Is(err, gateway.ErrRejected):
		q.recordBreakerSuccess()
		q.metrics.IncrementAttempt("rejected")
		span.RecordError(err)
		q.killJob(ctx, job, attempt, err)
	default:
		q.recordBreakerFailure()
		q.metrics.IncrementAttempt("transient")
		span.RecordError(err)
		q.retryOrKill(ctx, job, attempt, err)
	}
}

func (q *Queue) succeed(ctx context.Context, job domain.SendJob, attempt int, gatewayMessageID string) {
	q.finish(job.ID, attempt, gatewayMessageID)
	q.metrics.IncrementJob("done")

	// The send happened; shutdown must not lose the status write.
	updateCtx := context.WithoutCancel(ctx)
	if err := q.log.UpdateStatus(updateCtx, job.MessageID, pkgdomain.MessageStatusSent); err != nil && q.logger != nil {
		q.logger.ErrorContext(ctx, "failed to mark message sent",
			"message_id", job.MessageID.String(),
			"error", err,
		)
	}

	events.Log(ctx, q.logger, q.publisher, events.CategoryMessage, events.ActionMessageSent,
		"message_id", job.MessageID.String(),
		"job_id", job.ID.String(),
		"phone", job.Phone.Masked(),
		"status", pkgdomain.MessageStatusSent.String(),
		"attempts", attempt,
	)
}

func (q *Queue) killJob(ctx context.Context, job domain.SendJob, attempt int, cause error) {
	q.kill(job.ID, attempt, cause.Error())
	q.metrics.IncrementJob("dead")

	updateCtx := context.WithoutCancel(ctx)
	if err := q.log.UpdateStatus(updateCtx, job.MessageID, pkgdomain.MessageStatusFailed); err != nil && q.logger != nil {
		q.logger.ErrorContext(ctx, "failed to mark message failed",
			"message_id", job.MessageID.String(),
			"error", err,
		)
	}

	events.Log(ctx, q.logger, q.publisher, events.CategoryMessage, events.ActionMessageFailed,
		"message_id", job.MessageID.String(),
		"job_id", job.ID.String(),
		"phone", job.Phone.Masked(),
		"status", pkgdomain.MessageStatusFailed.String(),
		"detail", cause.Error(),
		"attempts", attempt,
	)
}

func (q *Queue) retryOrKill(ctx context.Context, job domain.SendJob, attempt int, cause error) {
	if attempt >= q.maxAttempts {
		q.killJob(ctx, job, attempt, cause)
		return
	}

	delay := q.policy.Delay(attempt)
	q.requeue(job.ID, attempt, delay, cause.Error())

	events.Log(ctx, q.logger, q.publisher, events.CategoryDispatch, events.ActionDispatchRetried,
		"message_id", job.MessageID.String(),
		"job_id", job.ID.String(),
		"phone", job.Phone.Masked(),
		"detail", cause.Error(),
		"attempt", attempt,
		"retry_in", delay.String(),
	)
}

// shortCircuited reports whether an open breaker should suppress this
// attempt. After the cooloff a probe is let through so a recovered gateway
// can close the circuit again.
func (q *Queue) shortCircuited() bool {
	if q.breaker == nil || !q.breaker.IsOpen() {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clock().Sub(q.breakerOpenedAt) < q.breakerCooloff
}

func (q *Queue) recordBreakerFailure() {
	if q.breaker == nil {
		return
	}

	_, change := q.breaker.RecordFailure()
	q.mu.Lock()
	q.breakerOpenedAt = q.clock()
	q.mu.Unlock()

	if change.Opened {
		q.metrics.IncrementBreakerTransition("open")
		if q.logger != nil {
			q.logger.Warn("gateway circuit opened", "breaker", q.breaker.Name())
		}
	}
}

func (q *Queue) recordBreakerSuccess() {
	if q.breaker == nil {
		return
	}

	_, change := q.breaker.RecordSuccess()
	if change.Closed {
		q.metrics.IncrementBreakerTransition("closed")
		if q.logger != nil {
			q.logger.Info("gateway circuit closed", "breaker", q.breaker.Name())
		}
	}
}
