package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

const (
	defaultBufferCapacity = 1024
	defaultRetryInterval  = 5 * time.Second
	retryBatchSize        = 128
)

// KafkaSink publishes events to a Kafka topic. A publish that fails lands in
// a bounded ring buffer and is retried in the background, so a broker outage
// loses as little as possible without ever blocking emission.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	buffer *ringBuffer
	logger *slog.Logger

	retryEvery time.Duration
	stop       chan struct{}
	stopped    chan struct{}
}

type KafkaSinkOption func(*KafkaSink)

func WithKafkaLogger(logger *slog.Logger) KafkaSinkOption {
	return func(s *KafkaSink) {
		s.logger = logger
	}
}

// WithBufferCapacity bounds the retry buffer. Oldest events are dropped
// first on overflow.
func WithBufferCapacity(capacity int) KafkaSinkOption {
	return func(s *KafkaSink) {
		s.buffer = newRingBuffer(capacity)
	}
}

func WithRetryInterval(interval time.Duration) KafkaSinkOption {
	return func(s *KafkaSink) {
		if interval > 0 {
			s.retryEvery = interval
		}
	}
}

func NewKafkaSink(brokers []string, topic string, opts ...KafkaSinkOption) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create kafka client")
	}

	s := &KafkaSink{
		client:     client,
		topic:      topic,
		buffer:     newRingBuffer(defaultBufferCapacity),
		retryEvery: defaultRetryInterval,
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.retryLoop()
	return s, nil
}

// Publish sends one event. On failure the event is buffered for background
// retry and the error is still returned so callers can count it.
func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	record, err := s.record(event)
	if err != nil {
		return err
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.buffer.enqueue(event)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "kafka publish failed")
	}
	return nil
}

// record keys by message, then contact, so per-entity ordering survives
// partitioning.
func (s *KafkaSink) record(event Event) (*kgo.Record, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to marshal event")
	}
	key := event.MessageID
	if key == "" {
		key = event.ContactID
	}
	if key == "" {
		key = event.ID
	}
	return &kgo.Record{Topic: s.topic, Key: []byte(key), Value: payload}, nil
}

func (s *KafkaSink) retryLoop() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.retryEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.flushBuffered()
		}
	}
}

// flushBuffered replays a batch of buffered events. On the first failure the
// unsent remainder goes back to the buffer and the attempt ends; the broker
// is evidently still down.
func (s *KafkaSink) flushBuffered() {
	batch := s.buffer.dequeueBatch(retryBatchSize)
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i, event := range batch {
		record, err := s.record(event)
		if err != nil {
			continue
		}
		if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			for _, unsent := range batch[i:] {
				s.buffer.enqueue(unsent)
			}
			if s.logger != nil {
				s.logger.Warn("event retry flush halted",
					"error", err,
					"buffered", s.buffer.len(),
					"dropped", s.buffer.droppedCount(),
				)
			}
			return
		}
	}

	if s.logger != nil {
		s.logger.Info("event retry flush succeeded", "replayed", len(batch))
	}
}

// Buffered reports the number of events awaiting retry.
func (s *KafkaSink) Buffered() int {
	return s.buffer.len()
}

// Close stops the retry loop, makes a final delivery attempt for buffered
// events, and releases the client.
func (s *KafkaSink) Close() {
	close(s.stop)
	<-s.stopped

	s.flushBuffered()
	s.client.Close()
}
