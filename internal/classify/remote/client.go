// Package remote is the HTTP client for the remote text-classification
// service: POST /v1/classify with {"text"} returning {"label","confidence"}.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
)

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Client calls the remote classification service. It satisfies
// classify.Remote.
type Client struct {
	http *resty.Client
}

type Option func(*Client)

// WithAuthToken sends a bearer token with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.http.SetAuthToken(token)
	}
}

// New builds a client for the given base URL. The timeout caps each call
// independently of any context deadline.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c := &Client{http: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify submits the text and returns the remote label with its
// confidence. Transport failures, non-2xx statuses, and unusable bodies are
// all errors; the caller decides how to degrade.
func (c *Client) Classify(ctx context.Context, text string) (pkgdomain.Classification, float64, error) {
	var result classifyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(classifyRequest{Text: text}).
		SetResult(&result).
		Post("/v1/classify")
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "remote classifier unreachable")
	}
	if resp.IsError() {
		return "", 0, dErrors.New(dErrors.CodeUnavailable,
			fmt.Sprintf("remote classifier returned status %d", resp.StatusCode()))
	}

	label, err := pkgdomain.ParseClassification(result.Label)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "remote classifier returned unknown label")
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return "", 0, dErrors.New(dErrors.CodeInternal, "remote classifier confidence out of range")
	}

	return label, result.Confidence, nil
}
