package handler

import (
	"time"

	"github.com/spwotton/sms/internal/dispatch"
	"github.com/spwotton/sms/internal/domain"
)

type messageResponse struct {
	ID             string    `json:"id"`
	ContactID      *string   `json:"contact_id,omitempty"`
	Phone          string    `json:"phone"`
	Content        string    `json:"content"`
	Direction      string    `json:"direction"`
	Status         string    `json:"status"`
	Classification string    `json:"classification"`
	CreatedAt      time.Time `json:"created_at"`
}

func fromMessage(m domain.Message) messageResponse {
	resp := messageResponse{
		ID:             m.ID.String(),
		Phone:          m.Phone.String(),
		Content:        m.Content,
		Direction:      m.Direction.String(),
		Status:         m.Status.String(),
		Classification: m.Classification.String(),
		CreatedAt:      m.CreatedAt,
	}
	if m.ContactID != nil {
		id := m.ContactID.String()
		resp.ContactID = &id
	}
	return resp
}

func fromMessages(messages []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, fromMessage(m))
	}
	return out
}

type listResponse struct {
	Messages []messageResponse `json:"messages"`
	Count    int               `json:"count"`
}

type statsResponse struct {
	TotalContacts    int                  `json:"total_contacts"`
	TotalMessages    int                  `json:"total_messages"`
	CriticalMessages int                  `json:"critical_messages"`
	StableMessages   int                  `json:"stable_messages"`
	PendingMessages  int                  `json:"pending_messages"`
	FailedMessages   int                  `json:"failed_messages"`
	Queue            *dispatch.QueueStats `json:"queue,omitempty"`
}

func fromStats(s domain.Stats) statsResponse {
	return statsResponse{
		TotalContacts:    s.TotalContacts,
		TotalMessages:    s.TotalMessages,
		CriticalMessages: s.CriticalMessages,
		StableMessages:   s.StableMessages,
		PendingMessages:  s.PendingMessages,
		FailedMessages:   s.FailedMessages,
	}
}
