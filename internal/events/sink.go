package events

import (
	"context"
	"log/slog"
)

// LogSink writes events to the structured log. It is the sink of choice when
// no brokers are configured, keeping the event stream observable in dev and
// single-node deployments.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, string(event.Action),
		"event_id", event.ID,
		"category", event.Category,
		"message_id", event.MessageID,
		"contact_id", event.ContactID,
		"job_id", event.JobID,
		"phone", event.Phone,
		"label", event.Label,
		"status", event.Status,
		"detail", event.Detail,
		"request_id", event.RequestID,
		"log_type", "event",
	)
	return nil
}
