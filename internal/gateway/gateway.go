// Package gateway integrates the upstream SMS gateway. Jasmin speaks the
// gateway's HTTP wire protocol; Loopback stands in when no upstream is
// configured. Retry policy lives in dispatch, not here: the client reports
// each attempt's outcome exactly once, splitting permanent rejections
// (ErrRejected) from transient trouble (any other error).
package gateway

import (
	"context"
	"errors"
	"strings"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

// ErrRejected marks a permanent gateway rejection. Retrying the same
// message cannot help; the wrapped text carries the gateway's reason.
var ErrRejected = errors.New("message rejected by gateway")

// Client is the full gateway surface: submission plus balance and delivery
// report lookups. Jasmin and Loopback both satisfy it.
type Client interface {
	Send(ctx context.Context, phone pkgdomain.Phone, content string) (SendResult, error)
	CheckStatus(ctx context.Context, gatewayMessageID string) (DeliveryState, error)
	Balance(ctx context.Context) (float64, error)
}

// SendResult reports an accepted submission.
type SendResult struct {
	// GatewayMessageID is the upstream identifier, used later for delivery
	// receipt lookups.
	GatewayMessageID string
}

// DeliveryState is the upstream carrier's view of a sent message.
type DeliveryState string

const (
	DeliveryDelivered   DeliveryState = "delivered"
	DeliveryPending     DeliveryState = "pending"
	DeliveryUndelivered DeliveryState = "undelivered"
)

func (d DeliveryState) String() string {
	return string(d)
}

// MessageStatus maps the upstream state onto the message log's state
// machine. Pending stays sent: the hub handed the message off and is still
// waiting on the carrier.
func (d DeliveryState) MessageStatus() pkgdomain.MessageStatus {
	switch d {
	case DeliveryDelivered:
		return pkgdomain.MessageStatusDelivered
	case DeliveryUndelivered:
		return pkgdomain.MessageStatusFailed
	default:
		return pkgdomain.MessageStatusSent
	}
}

// ParseDeliveryState validates raw delivery receipt text.
func ParseDeliveryState(raw string) (DeliveryState, error) {
	switch state := DeliveryState(strings.ToLower(raw)); state {
	case DeliveryDelivered, DeliveryPending, DeliveryUndelivered:
		return state, nil
	default:
		return "", dErrors.New(dErrors.CodeInternal, "unknown delivery state: "+raw)
	}
}

// parseWireBody extracts the quoted payload of a `Prefix "payload"` wire
// response body.
func parseWireBody(body, prefix string) (string, bool) {
	rest, found := strings.CutPrefix(body, prefix)
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}
