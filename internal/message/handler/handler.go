// Package handler exposes the message log and the send/receive entry
// points.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spwotton/sms/internal/dispatch"
	"github.com/spwotton/sms/internal/domain"
	"github.com/spwotton/sms/internal/message"
	pkgdomain "github.com/spwotton/sms/pkg/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/platform/httputil"
	"github.com/spwotton/sms/pkg/requestcontext"
)

// Pipeline processes new messages through validation, classification, and
// dispatch admission.
type Pipeline interface {
	Process(ctx context.Context, phone, content string, direction pkgdomain.Direction) (domain.Message, error)
}

// Log serves reads over the message log.
type Log interface {
	Get(ctx context.Context, rawID string) (domain.Message, error)
	List(ctx context.Context, params message.ListParams) ([]domain.Message, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// QueueStats reports dispatch occupancy for the stats endpoint.
type QueueStats interface {
	Stats() dispatch.QueueStats
}

// Handler wires message endpoints to the pipeline and the log.
type Handler struct {
	pipeline Pipeline
	log      Log
	queue    QueueStats
	logger   *slog.Logger
}

// New constructs a message handler. queue may be nil; the stats response
// then omits dispatch occupancy.
func New(pipeline Pipeline, log Log, queue QueueStats, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		log:      log,
		queue:    queue,
		logger:   logger,
	}
}

// Register mounts the message endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/messages/send", h.handleSend)
	r.Post("/messages/receive", h.handleReceive)
	r.Get("/messages", h.handleList)
	r.Get("/messages/{id}", h.handleGet)
	r.Get("/stats", h.handleStats)
}

// handleSend handles POST /messages/send requests.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, pkgdomain.DirectionOutbound)
}

// handleReceive handles POST /messages/receive requests.
func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	h.process(w, r, pkgdomain.DirectionInbound)
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request, direction pkgdomain.Direction) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[MessageRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	msg, err := h.pipeline.Process(ctx, req.Phone, req.Content, direction)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) || dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.WarnContext(ctx, "message rejected",
				"request_id", requestID,
				"direction", direction,
				"error", err,
			)
		} else {
			h.logger.ErrorContext(ctx, "message processing failed",
				"request_id", requestID,
				"direction", direction,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "message accepted",
		"request_id", requestID,
		"message_id", msg.ID.String(),
		"direction", direction,
		"classification", msg.Classification,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromMessage(msg))
}

// handleList handles GET /messages requests.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	messages, err := h.log.List(ctx, message.ListParams{
		ContactID:      q.Get("contact_id"),
		Direction:      q.Get("direction"),
		Classification: q.Get("classification"),
		Status:         q.Get("status"),
		Limit:          q.Get("limit"),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listResponse{
		Messages: fromMessages(messages),
		Count:    len(messages),
	})
}

// handleGet handles GET /messages/{id} requests.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	msg, err := h.log.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromMessage(msg))
}

// handleStats handles GET /stats requests.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.log.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "stats aggregation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := fromStats(stats)
	if h.queue != nil {
		qs := h.queue.Stats()
		resp.Queue = &qs
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
