// Package handler exposes gateway balance and delivery-report lookups.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spwotton/sms/internal/domain"
	"github.com/spwotton/sms/internal/events"
	"github.com/spwotton/sms/internal/gateway"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	"github.com/spwotton/sms/pkg/platform/httputil"
	"github.com/spwotton/sms/pkg/requestcontext"
)

// Gateway is the upstream carrier connection.
type Gateway interface {
	Balance(ctx context.Context) (float64, error)
	CheckStatus(ctx context.Context, gatewayMessageID string) (gateway.DeliveryState, error)
}

// References maps hub messages to the gateway's own identifiers. The
// dispatch queue keeps them for the life of the process; after a restart a
// message simply has no reference anymore.
type References interface {
	GatewayMessageID(id pkgdomain.MessageID) (string, bool)
}

// Log reads messages and advances their status on delivery receipts.
type Log interface {
	Get(ctx context.Context, rawID string) (domain.Message, error)
	UpdateStatus(ctx context.Context, id pkgdomain.MessageID, status pkgdomain.MessageStatus) error
}

// Handler wires gateway endpoints.
type Handler struct {
	gateway   Gateway
	refs      References
	log       Log
	logger    *slog.Logger
	publisher *events.Publisher
}

// New constructs a gateway handler.
func New(gw Gateway, refs References, log Log, logger *slog.Logger, publisher *events.Publisher) *Handler {
	return &Handler{
		gateway:   gw,
		refs:      refs,
		log:       log,
		logger:    logger,
		publisher: publisher,
	}
}

// Register mounts the gateway endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/gateway/balance", h.handleBalance)
	r.Get("/gateway/status/{messageID}", h.handleStatus)
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// handleBalance handles GET /gateway/balance requests.
func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	balance, err := h.gateway.Balance(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "balance check failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

type statusResponse struct {
	MessageID        string `json:"message_id"`
	Status           string `json:"status"`
	GatewayMessageID string `json:"gateway_message_id,omitempty"`
	GatewayState     string `json:"gateway_state,omitempty"`
}

// handleStatus handles GET /gateway/status/{messageID} requests. It asks
// the gateway for the delivery report of a sent message and folds the
// answer back into the log, so polling this endpoint is what moves a
// message from sent to delivered.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	msg, err := h.log.Get(ctx, chi.URLParam(r, "messageID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := statusResponse{
		MessageID: msg.ID.String(),
		Status:    msg.Status.String(),
	}

	gatewayID, ok := h.refs.GatewayMessageID(msg.ID)
	if !ok {
		// Never dispatched, or the reference died with a previous
		// process. The log status is all we know.
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}
	resp.GatewayMessageID = gatewayID

	state, err := h.gateway.CheckStatus(ctx, gatewayID)
	if err != nil {
		h.logger.ErrorContext(ctx, "delivery report lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"message_id", msg.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp.GatewayState = state.String()

	if next := state.MessageStatus(); next != msg.Status && msg.Status.CanTransitionTo(next) {
		if err := h.log.UpdateStatus(ctx, msg.ID, next); err != nil {
			httputil.WriteError(w, err)
			return
		}
		resp.Status = next.String()
		h.emitReceipt(ctx, msg, next)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) emitReceipt(ctx context.Context, msg domain.Message, status pkgdomain.MessageStatus) {
	action := events.ActionMessageDelivered
	attrs := []any{
		"message_id", msg.ID.String(),
		"phone", msg.Phone.Masked(),
		"status", status.String(),
	}
	if status == pkgdomain.MessageStatusFailed {
		action = events.ActionMessageFailed
		attrs = append(attrs, "detail", "delivery receipt: undelivered")
	}
	events.Log(ctx, h.logger, h.publisher, events.CategoryMessage, action, attrs...)
}
