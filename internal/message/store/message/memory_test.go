package message

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/spwotton/sms/internal/domain"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	"github.com/spwotton/sms/pkg/platform/sentinel"
)

type MessageStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	seq   int
}

func (s *MessageStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.seq = 0
}

func TestMessageStoreSuite(t *testing.T) {
	suite.Run(t, new(MessageStoreSuite))
}

func (s *MessageStoreSuite) newMessage(direction pkgdomain.Direction, status pkgdomain.MessageStatus, classification pkgdomain.Classification) domain.Message {
	s.seq++
	return domain.Message{
		ID:             pkgdomain.NewMessageID(),
		Phone:          pkgdomain.Phone("+15550600001"),
		Content:        "hello",
		Direction:      direction,
		Status:         status,
		Classification: classification,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second),
	}
}

func (s *MessageStoreSuite) append(msg domain.Message) domain.Message {
	s.Require().NoError(s.store.Append(s.ctx, msg))
	return msg
}

func (s *MessageStoreSuite) TestAppendAndGet() {
	s.Run("round trips a message", func() {
		contactID := pkgdomain.NewContactID()
		msg := s.newMessage(pkgdomain.DirectionOutbound, pkgdomain.MessageStatusPending, pkgdomain.ClassificationCritical)
		msg.ContactID = &contactID
		s.append(msg)

		found, err := s.store.Get(s.ctx, msg.ID)
		s.Require().NoError(err)
		s.Equal(msg, found)
	})

	s.Run("rejects duplicate append", func() {
		msg := s.append(s.newMessage(pkgdomain.DirectionInbound, pkgdomain.MessageStatusPending, pkgdomain.ClassificationStable))

		err := s.store.Append(s.ctx, msg)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Get(s.ctx, pkgdomain.NewMessageID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MessageStoreSuite) TestUpdateStatus() {
	s.Run("updates stored status", func() {
		msg := s.append(s.newMessage(pkgdomain.DirectionOutbound, pkgdomain.MessageStatusPending, pkgdomain.ClassificationStable))

		s.Require().NoError(s.store.UpdateStatus(s.ctx, msg.ID, pkgdomain.MessageStatusSent))

		found, err := s.store.Get(s.ctx, msg.ID)
		s.Require().NoError(err)
		s.Equal(pkgdomain.MessageStatusSent, found.Status)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		err := s.store.UpdateStatus(s.ctx, pkgdomain.NewMessageID(), pkgdomain.MessageStatusSent)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MessageStoreSuite) TestQuery() {
	first := s.append(s.newMessage(pkgdomain.DirectionInbound, pkgdomain.MessageStatusPending, pkgdomain.ClassificationStable))
	second := s.append(s.newMessage(pkgdomain.DirectionOutbound, pkgdomain.MessageStatusSent, pkgdomain.ClassificationCritical))
	third := s.append(s.newMessage(pkgdomain.DirectionOutbound, pkgdomain.MessageStatusPending, pkgdomain.ClassificationCritical))

	s.Run("returns newest first", func() {
		messages, err := s.store.Query(s.ctx, domain.MessageFilter{})
		s.Require().NoError(err)
		s.Require().Len(messages, 3)
		s.Equal(third.ID, messages[0].ID)
		s.Equal(second.ID, messages[1].ID)
		s.Equal(first.ID, messages[2].ID)
	})

	s.Run("honors explicit limit", func() {
		messages, err := s.store.Query(s.ctx, domain.MessageFilter{Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(messages, 2)
		s.Equal(third.ID, messages[0].ID)
		s.Equal(second.ID, messages[1].ID)
	})

	s.Run("negative limit returns everything", func() {
		messages, err := s.store.Query(s.ctx, domain.MessageFilter{Limit: -1})
		s.Require().NoError(err)
		s.Len(messages, 3)
	})

	s.Run("filters by direction and status", func() {
		messages, err := s.store.Query(s.ctx, domain.MessageFilter{
			Direction: pkgdomain.DirectionOutbound,
			Status:    pkgdomain.MessageStatusPending,
		})
		s.Require().NoError(err)
		s.Require().Len(messages, 1)
		s.Equal(third.ID, messages[0].ID)
	})

	s.Run("filters by classification", func() {
		messages, err := s.store.Query(s.ctx, domain.MessageFilter{
			Classification: pkgdomain.ClassificationCritical,
		})
		s.Require().NoError(err)
		s.Len(messages, 2)
	})

	s.Run("filters by contact", func() {
		contactID := pkgdomain.NewContactID()
		withContact := s.newMessage(pkgdomain.DirectionInbound, pkgdomain.MessageStatusPending, pkgdomain.ClassificationStable)
		withContact.ContactID = &contactID
		s.append(withContact)

		messages, err := s.store.Query(s.ctx, domain.MessageFilter{ContactID: &contactID})
		s.Require().NoError(err)
		s.Require().Len(messages, 1)
		s.Equal(withContact.ID, messages[0].ID)
	})
}

func (s *MessageStoreSuite) TestStats() {
	s.append(s.newMessage(pkgdomain.DirectionInbound, pkgdomain.MessageStatusPending, pkgdomain.ClassificationCritical))
	s.append(s.newMessage(pkgdomain.DirectionOutbound, pkgdomain.MessageStatusSent, pkgdomain.ClassificationStable))
	s.append(s.newMessage(pkgdomain.DirectionOutbound, pkgdomain.MessageStatusFailed, pkgdomain.ClassificationCritical))

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, stats.TotalMessages)
	s.Equal(2, stats.CriticalMessages)
	s.Equal(1, stats.StableMessages)
	s.Equal(1, stats.PendingMessages)
	s.Equal(1, stats.FailedMessages)
	s.Zero(stats.TotalContacts)
}
