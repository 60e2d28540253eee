package events

import (
	"context"
	"log/slog"

	"github.com/spwotton/sms/pkg/attrs"
	"github.com/spwotton/sms/pkg/requestcontext"
)

// Log records a lifecycle transition to both the structured logger and the
// publisher. Known attribute keys (message_id, contact_id, job_id, phone,
// label, status, detail) are lifted into the event; everything is enriched
// with the request ID and device label when present.
func Log(ctx context.Context, logger *slog.Logger, publisher *Publisher, category Category, action Action, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "event", action, "log_type", "event")
	if logger != nil {
		logger.InfoContext(ctx, string(action), args...)
	}

	if publisher == nil {
		return
	}

	_ = publisher.Emit(ctx, Event{
		Category:  category,
		Action:    action,
		MessageID: attrs.ExtractString(attrList, "message_id"),
		ContactID: attrs.ExtractString(attrList, "contact_id"),
		JobID:     attrs.ExtractString(attrList, "job_id"),
		Phone:     attrs.ExtractString(attrList, "phone"),
		Label:     attrs.ExtractString(attrList, "label"),
		Status:    attrs.ExtractString(attrList, "status"),
		Detail:    attrs.ExtractString(attrList, "detail"),
		RequestID: requestID,
		Device:    requestcontext.DeviceLabel(ctx),
	})
}
