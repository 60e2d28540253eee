package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSink records published events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *captureSink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

func TestPublisher_SyncMode(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink)
	defer pub.Close()

	err := pub.Emit(context.Background(), Event{
		Category:  CategoryMessage,
		Action:    ActionMessageReceived,
		MessageID: "m-1",
	})
	require.NoError(t, err)

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, ActionMessageReceived, got[0].Action)
	assert.NotEmpty(t, got[0].ID)
}

func TestPublisher_AsyncMode(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), Event{
		Category: CategoryContact,
		Action:   ActionContactCreated,
	})
	require.NoError(t, err)

	// Wait for async processing
	require.Eventually(t, func() bool {
		return len(sink.all()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, ActionContactCreated, sink.all()[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink, WithAsyncBuffer(100))

	for i := 0; i < 10; i++ {
		err := pub.Emit(context.Background(), Event{
			Category: CategoryMessage,
			Action:   ActionMessageSent,
		})
		require.NoError(t, err)
	}

	pub.Close()

	assert.Len(t, sink.all(), 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Emit(context.Background(), Event{
				Category: CategoryMessage,
				Action:   ActionMessageEnqueued,
			})
		}()
	}
	wg.Wait()

	// Some events may be dropped with a buffer of one; emission must never
	// block or panic and the publisher keeps working.
	err := pub.Emit(context.Background(), Event{Action: ActionMessageSent})
	require.NoError(t, err)
}

func TestPublisher_SetsTimestampAndID(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink)
	defer pub.Close()

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionMessageReceived}))
	after := time.Now()

	got := sink.all()
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.Before(before))
	assert.False(t, got[0].Timestamp.After(after))
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink)
	defer pub.Close()

	customTime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), Event{
		Action:    ActionMessageReceived,
		Timestamp: customTime,
	}))

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, customTime, got[0].Timestamp)
}

func TestPublisher_EmitAfterCloseIsSafe(t *testing.T) {
	sink := &captureSink{}
	pub := NewPublisher(sink, WithAsyncBuffer(4))
	pub.Close()
	pub.Close() // idempotent

	require.NoError(t, pub.Emit(context.Background(), Event{Action: ActionMessageSent}))
	assert.Empty(t, sink.all())
}

func TestRingBuffer_DropsOldestOnOverflow(t *testing.T) {
	buf := newRingBuffer(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		buf.enqueue(Event{ID: id})
	}

	assert.Equal(t, 3, buf.len())
	assert.Equal(t, int64(1), buf.droppedCount())

	batch := buf.dequeueBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, "b", batch[0].ID)
	assert.Equal(t, "c", batch[1].ID)
	assert.Equal(t, "d", batch[2].ID)
	assert.Equal(t, 0, buf.len())
}

func TestRingBuffer_DequeueBatchBounded(t *testing.T) {
	buf := newRingBuffer(8)
	for _, id := range []string{"a", "b", "c"} {
		buf.enqueue(Event{ID: id})
	}

	first := buf.dequeueBatch(2)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ID)

	rest := buf.dequeueBatch(2)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)
	assert.Nil(t, buf.dequeueBatch(2))
}
