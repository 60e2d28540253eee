package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

// LoopbackSend records one accepted submission.
type LoopbackSend struct {
	Phone            pkgdomain.Phone
	Content          string
	GatewayMessageID string
}

// Loopback accepts every message in-process. It backs development mode when
// no upstream gateway is configured, and gives tests a gateway whose
// behavior they can script.
type Loopback struct {
	mu      sync.Mutex
	sent    []LoopbackSend
	states  map[string]DeliveryState
	balance float64
	sendErr error
}

type LoopbackOption func(*Loopback)

// WithLoopbackBalance overrides the reported credit.
func WithLoopbackBalance(balance float64) LoopbackOption {
	return func(l *Loopback) {
		l.balance = balance
	}
}

func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		states:  make(map[string]DeliveryState),
		balance: 1000,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Send accepts the message, assigns a synthetic gateway ID, and marks it
// delivered right away.
func (l *Loopback) Send(_ context.Context, phone pkgdomain.Phone, content string) (SendResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sendErr != nil {
		return SendResult{}, l.sendErr
	}

	id := "loopback-" + uuid.NewString()
	l.sent = append(l.sent, LoopbackSend{Phone: phone, Content: content, GatewayMessageID: id})
	l.states[id] = DeliveryDelivered
	return SendResult{GatewayMessageID: id}, nil
}

// CheckStatus reports the recorded delivery state.
func (l *Loopback) CheckStatus(_ context.Context, gatewayMessageID string) (DeliveryState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.states[gatewayMessageID]
	if !ok {
		return "", dErrors.New(dErrors.CodeNotFound, "unknown gateway message id")
	}
	return state, nil
}

func (l *Loopback) Balance(context.Context) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance, nil
}

// SetSendError makes every following Send fail with err until cleared with
// nil. Tests use it to drive rejection and retry paths.
func (l *Loopback) SetSendError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErr = err
}

// SetDeliveryState overrides the receipt reported for a gateway message ID.
func (l *Loopback) SetDeliveryState(gatewayMessageID string, state DeliveryState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states[gatewayMessageID] = state
}

// Sent snapshots accepted submissions in order.
func (l *Loopback) Sent() []LoopbackSend {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]LoopbackSend, len(l.sent))
	copy(out, l.sent)
	return out
}
