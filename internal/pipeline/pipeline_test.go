package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/spwotton/sms/internal/classify"
	"github.com/spwotton/sms/internal/classify/remote"
	"github.com/spwotton/sms/internal/directory/cache"
	contactStore "github.com/spwotton/sms/internal/directory/store/contact"
	"github.com/spwotton/sms/internal/dispatch"
	"github.com/spwotton/sms/internal/domain"
	"github.com/spwotton/sms/internal/events"
	"github.com/spwotton/sms/internal/gateway"
	"github.com/spwotton/sms/internal/message"
	messageStore "github.com/spwotton/sms/internal/message/store/message"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) byAction(action events.Action) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type failingResolver struct{ err error }

func (r failingResolver) ResolveByPhone(context.Context, pkgdomain.Phone) (domain.Contact, bool, error) {
	return domain.Contact{}, false, r.err
}

type failingDispatcher struct{}

func (failingDispatcher) Enqueue(context.Context, domain.SendJob) (domain.SendJob, error) {
	return domain.SendJob{}, dErrors.New(dErrors.CodeInternal, "queue unavailable")
}

type failingLog struct{}

func (failingLog) Append(context.Context, domain.Message) (pkgdomain.MessageID, error) {
	return pkgdomain.MessageID{}, dErrors.New(dErrors.CodeInternal, "message store down")
}

func (failingLog) Query(context.Context, domain.MessageFilter) ([]domain.Message, error) {
	return nil, dErrors.New(dErrors.CodeUnavailable, "message store down")
}

// PipelineSuite wires real collaborators end to end: the in-memory message
// log, the recipient cache over the contact store, the heuristic classifier,
// and the dispatch queue draining into the loopback gateway.
type PipelineSuite struct {
	suite.Suite

	ctx       context.Context
	msgStore  *messageStore.InMemory
	messages  *message.Service
	contacts  *contactStore.InMemory
	resolver  *cache.RecipientCache
	gw        *gateway.Loopback
	queue     *dispatch.Queue
	sink      *recordingSink
	publisher *events.Publisher
	service   *Service
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	s.sink = &recordingSink{}
	s.publisher = events.NewPublisher(s.sink)

	s.msgStore = messageStore.NewInMemory()
	s.messages = message.New(s.msgStore)
	s.contacts = contactStore.NewInMemory()
	s.resolver = cache.New(s.contacts, cache.NewMemory(cache.DefaultCapacity))

	s.gw = gateway.NewLoopback()
	s.queue = dispatch.New(s.gw, s.messages,
		dispatch.WithPollInterval(time.Millisecond),
		dispatch.WithRetryPolicy(dispatch.RetryPolicy{Base: time.Millisecond, Factor: 2, Jitter: 0}),
		dispatch.WithPublisher(s.publisher),
	)

	s.service = s.build(classify.New())
}

func (s *PipelineSuite) build(classifier Classifier) *Service {
	return New(s.resolver, classifier, s.messages, s.queue, WithPublisher(s.publisher))
}

func (s *PipelineSuite) seedContact(rawPhone string) domain.Contact {
	phone, err := pkgdomain.ParsePhone(rawPhone)
	s.Require().NoError(err)
	contact := domain.Contact{
		ID:           pkgdomain.NewContactID(),
		Name:         "Dana Reyes",
		Phone:        phone,
		Priority:     pkgdomain.PriorityHigh,
		Relationship: pkgdomain.RelationshipFriend,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	s.Require().NoError(s.contacts.Create(s.ctx, contact))
	return contact
}

func (s *PipelineSuite) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = s.queue.Run(ctx)
		close(stopped)
	}()
	s.T().Cleanup(func() {
		cancel()
		<-stopped
	})
}

// ==================== End-to-end delivery ====================

func (s *PipelineSuite) TestCriticalOutboundEndToEnd() {
	contact := s.seedContact("+15551000001")
	s.startWorkers()

	msg, err := s.service.Process(s.ctx, "+1 (555) 100-0001", "I need help now, call 911", pkgdomain.DirectionOutbound)
	s.Require().NoError(err)

	s.False(msg.ID.IsNil())
	s.Equal(pkgdomain.MessageStatusPending, msg.Status)
	s.Equal(pkgdomain.ClassificationCritical, msg.Classification)
	s.Equal(pkgdomain.DirectionOutbound, msg.Direction)
	s.Equal(pkgdomain.Phone("+15551000001"), msg.Phone)
	s.Require().NotNil(msg.ContactID)
	s.Equal(contact.ID, *msg.ContactID)
	s.False(msg.CreatedAt.IsZero())

	s.Require().Eventually(func() bool {
		stored, err := s.messages.Get(s.ctx, msg.ID.String())
		return err == nil && stored.Status == pkgdomain.MessageStatusSent
	}, 2*time.Second, 5*time.Millisecond)

	sent := s.gw.Sent()
	s.Require().Len(sent, 1)
	s.Equal(msg.Phone, sent[0].Phone)
	s.Equal("I need help now, call 911", sent[0].Content)

	s.Len(s.sink.byAction(events.ActionMessageReceived), 1)
	classified := s.sink.byAction(events.ActionMessageClassified)
	s.Require().Len(classified, 1)
	s.Equal("critical", classified[0].Label)
	s.Equal("heuristic", classified[0].Detail)
	enqueued := s.sink.byAction(events.ActionMessageEnqueued)
	s.Require().Len(enqueued, 1)
	s.Equal(msg.ID.String(), enqueued[0].MessageID)
	s.Len(s.sink.byAction(events.ActionMessageSent), 1)
}

func (s *PipelineSuite) TestStableOutboundFromUnknownPhone() {
	s.startWorkers()

	msg, err := s.service.Process(s.ctx, "+15551000002", "See you at dinner", pkgdomain.DirectionOutbound)
	s.Require().NoError(err)
	s.Equal(pkgdomain.ClassificationStable, msg.Classification)
	s.Nil(msg.ContactID)

	s.Require().Eventually(func() bool {
		return s.queue.Stats().Done == 1
	}, 2*time.Second, 5*time.Millisecond)
	s.Require().Len(s.gw.Sent(), 1)
}

func (s *PipelineSuite) TestDeliveryOutlivesCallerContext() {
	s.startWorkers()

	ctx, cancel := context.WithCancel(s.ctx)
	msg, err := s.service.Process(ctx, "+15551000003", "Package arrived", pkgdomain.DirectionOutbound)
	s.Require().NoError(err)
	cancel()

	s.Require().Eventually(func() bool {
		stored, err := s.messages.Get(s.ctx, msg.ID.String())
		return err == nil && stored.Status == pkgdomain.MessageStatusSent
	}, 2*time.Second, 5*time.Millisecond)
}

// ==================== Direction handling ====================

func (s *PipelineSuite) TestInboundLogsWithoutDispatch() {
	s.seedContact("+15551000004")

	msg, err := s.service.Process(s.ctx, "+15551000004", "Fire at the warehouse, call 911!", pkgdomain.DirectionInbound)
	s.Require().NoError(err)
	s.Equal(pkgdomain.ClassificationCritical, msg.Classification)
	s.Equal(dispatch.QueueStats{}, s.queue.Stats())
	s.Empty(s.sink.byAction(events.ActionMessageEnqueued))

	stored, err := s.messages.Get(s.ctx, msg.ID.String())
	s.Require().NoError(err)
	s.Equal(pkgdomain.DirectionInbound, stored.Direction)
	s.Equal(pkgdomain.MessageStatusPending, stored.Status)
}

func (s *PipelineSuite) TestRejectsUnknownDirection() {
	_, err := s.service.Process(s.ctx, "+15551000005", "hello", pkgdomain.Direction("sideways"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// ==================== Validation ====================

func (s *PipelineSuite) TestValidationHasNoSideEffects() {
	cases := []struct {
		name    string
		phone   string
		content string
	}{
		{name: "malformed phone", phone: "555-0800", content: "hello"},
		{name: "empty content", phone: "+15551000006", content: ""},
		{name: "oversize content", phone: "+15551000006", content: strings.Repeat("a", domain.MaxContentLength+1)},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Process(s.ctx, tc.phone, tc.content, pkgdomain.DirectionOutbound)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	all, err := s.messages.Query(s.ctx, domain.MessageFilter{Limit: -1})
	s.Require().NoError(err)
	s.Empty(all)
	s.Equal(dispatch.QueueStats{}, s.queue.Stats())
	s.Empty(s.sink.all())
}

func (s *PipelineSuite) TestMaxLengthContentCountsRunes() {
	msg, err := s.service.Process(s.ctx, "+15551000007", strings.Repeat("б", domain.MaxContentLength), pkgdomain.DirectionInbound)
	s.Require().NoError(err)
	s.False(msg.ID.IsNil())
}

// ==================== Degraded dependencies ====================

func (s *PipelineSuite) TestResolverOutageLeavesUnresolved() {
	p := New(failingResolver{err: errors.New("cache backend gone")}, classify.New(), s.messages, s.queue,
		WithPublisher(s.publisher))

	msg, err := p.Process(s.ctx, "+15551000008", "See you at dinner", pkgdomain.DirectionInbound)
	s.Require().NoError(err)
	s.Nil(msg.ContactID)

	stored, err := s.messages.Get(s.ctx, msg.ID.String())
	s.Require().NoError(err)
	s.Nil(stored.ContactID)
}

func (s *PipelineSuite) TestBorderlineTextFallsBackWhenRemoteFails() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model offline", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := s.build(classify.New(classify.WithRemote(remote.New(srv.URL, 500*time.Millisecond))))

	// "urgent" alone scores critical but below the local confidence
	// threshold, so this escalates and then degrades.
	msg, err := p.Process(s.ctx, "+15551000009", "It's urgent, call me back", pkgdomain.DirectionOutbound)
	s.Require().NoError(err)
	s.Equal(pkgdomain.ClassificationCritical, msg.Classification)

	classified := s.sink.byAction(events.ActionMessageClassified)
	s.Require().Len(classified, 1)
	s.Equal("fallback", classified[0].Detail)
}

func (s *PipelineSuite) TestAppendFailureSurfacesBeforeDispatch() {
	p := New(s.resolver, classify.New(), failingLog{}, s.queue, WithPublisher(s.publisher))

	_, err := p.Process(s.ctx, "+15551000010", "hello there", pkgdomain.DirectionOutbound)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(dispatch.QueueStats{}, s.queue.Stats())
}

// ==================== Recovery sweep ====================

func (s *PipelineSuite) TestRecoverPendingReadmitsOutboundPending() {
	// Admission failing while appends succeed is the crash window the
	// sweep exists for: pending log rows with no job behind them.
	crashed := New(s.resolver, classify.New(), s.messages, failingDispatcher{}, WithPublisher(s.publisher))

	first, err := crashed.Process(s.ctx, "+15551000011", "Power is back on", pkgdomain.DirectionOutbound)
	s.Require().NoError(err)
	second, err := crashed.Process(s.ctx, "+15551000012", "Need a ride to the hospital", pkgdomain.DirectionOutbound)
	s.Require().NoError(err)

	// Rows the sweep must skip: inbound pending and outbound already sent.
	_, err = crashed.Process(s.ctx, "+15551000013", "Got it", pkgdomain.DirectionInbound)
	s.Require().NoError(err)
	delivered, err := crashed.Process(s.ctx, "+15551000014", "On my way", pkgdomain.DirectionOutbound)
	s.Require().NoError(err)
	s.Require().NoError(s.messages.UpdateStatus(s.ctx, delivered.ID, pkgdomain.MessageStatusSent))

	recovered, err := s.service.RecoverPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, recovered)
	s.Equal(2, s.queue.Stats().Queued)

	var readmitted []string
	for _, e := range s.sink.byAction(events.ActionMessageEnqueued) {
		if e.Detail == "recovered" {
			readmitted = append(readmitted, e.MessageID)
		}
	}
	s.ElementsMatch([]string{first.ID.String(), second.ID.String()}, readmitted)

	// A second sweep finds both jobs active and admits nothing.
	recovered, err = s.service.RecoverPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(recovered)
	s.Equal(2, s.queue.Stats().Queued)

	// Workers drain the recovered backlog to sent.
	s.startWorkers()
	s.Require().Eventually(func() bool {
		return s.queue.Stats().Done == 2
	}, 2*time.Second, 5*time.Millisecond)
	for _, id := range []pkgdomain.MessageID{first.ID, second.ID} {
		stored, err := s.messages.Get(s.ctx, id.String())
		s.Require().NoError(err)
		s.Equal(pkgdomain.MessageStatusSent, stored.Status)
	}
}

func (s *PipelineSuite) TestRecoverPendingPropagatesQueryFailure() {
	p := New(s.resolver, classify.New(), failingLog{}, s.queue, WithPublisher(s.publisher))

	_, err := p.RecoverPending(s.ctx)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}
