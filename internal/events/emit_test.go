package events

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spwotton/sms/pkg/requestcontext"
)

func TestLog_LiftsAttrsIntoEvent(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink)
	defer pub.Close()

	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "agent", "Chrome on Mac OS X")

	Log(ctx, slog.New(slog.DiscardHandler), pub, CategoryMessage, ActionMessageClassified,
		"message_id", "m-7",
		"phone", "***4567",
		"label", "critical",
	)

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, CategoryMessage, got[0].Category)
	assert.Equal(t, ActionMessageClassified, got[0].Action)
	assert.Equal(t, "m-7", got[0].MessageID)
	assert.Equal(t, "***4567", got[0].Phone)
	assert.Equal(t, "critical", got[0].Label)
	assert.Equal(t, "req-42", got[0].RequestID)
	assert.Equal(t, "Chrome on Mac OS X", got[0].Device)
}

func TestLog_NilCollaboratorsAreSafe(t *testing.T) {
	// Neither logger nor publisher is required.
	Log(context.Background(), nil, nil, CategoryContact, ActionContactDeleted, "contact_id", "c-1")
}

func TestLogSink_PublishNeverFails(t *testing.T) {
	sink := NewLogSink(slog.New(slog.DiscardHandler))
	assert.NoError(t, sink.Publish(context.Background(), Event{Action: ActionMessageSent}))
}
