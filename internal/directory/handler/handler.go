// Package handler exposes the contact directory CRUD endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spwotton/sms/internal/directory"
	"github.com/spwotton/sms/internal/domain"
	dErrors "github.com/spwotton/sms/pkg/domain-errors"
	"github.com/spwotton/sms/pkg/platform/httputil"
	"github.com/spwotton/sms/pkg/requestcontext"
)

// Service defines the interface for directory operations.
type Service interface {
	CreateContact(ctx context.Context, in directory.ContactInput) (domain.Contact, error)
	GetContact(ctx context.Context, rawID string) (domain.Contact, error)
	ListContacts(ctx context.Context, rawPriority, rawRelationship string) ([]domain.Contact, error)
	UpdateContact(ctx context.Context, rawID string, in directory.ContactInput) (domain.Contact, error)
	DeleteContact(ctx context.Context, rawID string) error
}

// Handler wires contact endpoints to the directory service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a directory handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the contact endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/contacts", h.handleCreate)
	r.Get("/contacts", h.handleList)
	r.Get("/contacts/{id}", h.handleGet)
	r.Put("/contacts/{id}", h.handleUpdate)
	r.Delete("/contacts/{id}", h.handleDelete)
}

// ContactRequest is the create/update payload. Enum parsing and phone
// normalization happen in the service.
type ContactRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Priority     string `json:"priority"`
	Relationship string `json:"relationship"`
}

// Validate checks the required fields.
func (r *ContactRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	return nil
}

func (r *ContactRequest) input() directory.ContactInput {
	return directory.ContactInput{
		Name:         r.Name,
		Phone:        r.Phone,
		Priority:     r.Priority,
		Relationship: r.Relationship,
	}
}

type contactResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Priority     string    `json:"priority"`
	Relationship string    `json:"relationship"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func fromContact(c domain.Contact) contactResponse {
	return contactResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Phone:        c.Phone.String(),
		Priority:     c.Priority.String(),
		Relationship: c.Relationship.String(),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type contactListResponse struct {
	Contacts []contactResponse `json:"contacts"`
	Count    int               `json:"count"`
}

// handleCreate handles POST /contacts requests.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ContactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	contact, err := h.service.CreateContact(ctx, req.input())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromContact(contact))
}

// handleList handles GET /contacts requests.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	contacts, err := h.service.ListContacts(r.Context(), q.Get("priority"), q.Get("relationship"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, fromContact(c))
	}
	httputil.WriteJSON(w, http.StatusOK, contactListResponse{Contacts: out, Count: len(out)})
}

// handleGet handles GET /contacts/{id} requests.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	contact, err := h.service.GetContact(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromContact(contact))
}

// handleUpdate handles PUT /contacts/{id} requests.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ContactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	contact, err := h.service.UpdateContact(ctx, chi.URLParam(r, "id"), req.input())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromContact(contact))
}

// handleDelete handles DELETE /contacts/{id} requests.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteContact(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
