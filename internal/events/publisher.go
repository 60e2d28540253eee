package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink receives events for delivery. Implementations decide durability:
// Kafka, a log line, or a test capture.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher hands events to a sink, either synchronously or through a
// bounded channel drained by a background worker. In async mode a full
// channel drops the event rather than blocking the caller.
type Publisher struct {
	sink    Sink
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.RWMutex
	closed bool
	inbox  chan Event
	done   chan struct{}
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// channel capacity.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithPublisherMetrics(m *Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.done = make(chan struct{})
		go p.run()
	}
	return p
}

func (p *Publisher) run() {
	for event := range p.inbox {
		p.deliver(event)
	}
	close(p.done)
}

func (p *Publisher) deliver(event Event) {
	if err := p.sink.Publish(context.Background(), event); err != nil {
		p.metrics.incrementSinkFailure()
		if p.logger != nil {
			p.logger.Warn("event sink publish failed",
				"action", event.Action,
				"event_id", event.ID,
				"error", err,
			)
		}
	}
}

// Emit publishes the event, stamping ID and Timestamp when absent. In async
// mode a full buffer drops the event and returns nil; emission failures
// never propagate to domain flow.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.metrics.incrementEmitted(event.Action)

	if p.inbox == nil {
		return p.sink.Publish(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}

	select {
	case p.inbox <- event:
	default:
		p.metrics.incrementDropped()
		if p.logger != nil {
			p.logger.Warn("event buffer full, dropping event",
				"action", event.Action,
				"event_id", event.ID,
			)
		}
	}
	return nil
}

// Close drains any buffered events and stops the worker. Safe to call more
// than once.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed || p.inbox == nil {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
}
