package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

// Jasmin talks to a Jasmin SMS gateway over its plain-text HTTP API:
// GET /secure/send, /secure/balance, and /secure/dlr with credentials as
// query parameters.
type Jasmin struct {
	http     *resty.Client
	username string
	password string
	from     string
}

type JasminOption func(*Jasmin)

// WithFrom sets the originating address attached to every send.
func WithFrom(from string) JasminOption {
	return func(j *Jasmin) {
		j.from = from
	}
}

// NewJasmin builds a client for the given base URL. The timeout caps each
// call independently of any context deadline.
func NewJasmin(baseURL, username, password string, timeout time.Duration, opts ...JasminOption) *Jasmin {
	j := &Jasmin{
		http:     resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		username: username,
		password: password,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Send submits one message. Acceptance returns the gateway message ID from
// the `Success "<id>"` body. A 4xx `Error "<reason>"` body wraps
// ErrRejected; every other failure (5xx, timeout, transport, unparseable
// acceptance) is transient.
func (j *Jasmin) Send(ctx context.Context, phone pkgdomain.Phone, content string) (SendResult, error) {
	req := j.http.R().
		SetContext(ctx).
		SetQueryParam("username", j.username).
		SetQueryParam("password", j.password).
		SetQueryParam("to", string(phone)).
		SetQueryParam("content", content)
	if j.from != "" {
		req.SetQueryParam("from", j.from)
	}

	resp, err := req.Get("/secure/send")
	if err != nil {
		return SendResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "gateway unreachable")
	}

	body := strings.TrimSpace(resp.String())
	switch {
	case resp.IsSuccess():
		id, ok := parseWireBody(body, "Success")
		if !ok {
			return SendResult{}, dErrors.New(dErrors.CodeInternal,
				fmt.Sprintf("gateway acceptance unparseable: %q", body))
		}
		return SendResult{GatewayMessageID: id}, nil
	case resp.StatusCode() >= 400 && resp.StatusCode() < 500:
		reason, ok := parseWireBody(body, "Error")
		if !ok {
			reason = body
		}
		return SendResult{}, fmt.Errorf("%w: %s", ErrRejected, reason)
	default:
		return SendResult{}, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("gateway returned status %d", resp.StatusCode()))
	}
}

// CheckStatus polls the delivery receipt for a previously accepted message.
func (j *Jasmin) CheckStatus(ctx context.Context, gatewayMessageID string) (DeliveryState, error) {
	resp, err := j.http.R().
		SetContext(ctx).
		SetQueryParam("username", j.username).
		SetQueryParam("password", j.password).
		SetQueryParam("message-id", gatewayMessageID).
		Get("/secure/dlr")
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "gateway unreachable")
	}
	if resp.IsError() {
		return "", dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("gateway returned status %d", resp.StatusCode()))
	}

	return ParseDeliveryState(strings.Trim(strings.TrimSpace(resp.String()), `"`))
}

// Balance reports the remaining gateway credit.
func (j *Jasmin) Balance(ctx context.Context) (float64, error) {
	resp, err := j.http.R().
		SetContext(ctx).
		SetQueryParam("username", j.username).
		SetQueryParam("password", j.password).
		Get("/secure/balance")
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "gateway unreachable")
	}
	if resp.IsError() {
		return 0, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("gateway returned status %d", resp.StatusCode()))
	}

	body := strings.Trim(strings.TrimSpace(resp.String()), `"`)
	balance, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("gateway balance unparseable: %q", body))
	}
	return balance, nil
}
