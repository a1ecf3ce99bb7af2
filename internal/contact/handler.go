package contact

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

// Handler exposes contact endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	requireAdmin func(http.Handler) http.Handler
}

// NewHandler builds Handler instance. requireAdmin guards every route except submission.
func NewHandler(logger *slog.Logger, service *Service, requireAdmin func(http.Handler) http.Handler) *Handler {
	return &Handler{logger: logger, service: service, requireAdmin: requireAdmin}
}

// MountRoutes registers contact routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/mark_as_read", h.markAsRead)
	})
}

type listResponse struct {
	Count      int       `json:"count"`
	Page       int       `json:"page,omitempty"`
	PageSize   int       `json:"page_size,omitempty"`
	TotalPages int       `json:"total_pages,omitempty"`
	Results    []Summary `json:"results"`
}

func newListResponse(items []Summary, page, size int, paged bool) listResponse {
	if !paged {
		return listResponse{Count: len(items), Results: items}
	}
	results, meta := shared.Paginate(items, page, size)
	return listResponse{
		Count:      meta.Total,
		Page:       meta.Page,
		PageSize:   meta.PerPage,
		TotalPages: meta.TotalPages,
		Results:    results,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrNotFound) {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in MessageInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "decode contact message", err)
		return
	}
	m, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create contact message", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	isRead, err := httpx.QueryBool(r, "is_read")
	if err != nil {
		h.fail(w, r, "list contact messages", err)
		return
	}
	page, size, paged, err := httpx.QueryPage(r)
	if err != nil {
		h.fail(w, r, "list contact messages", err)
		return
	}
	items, err := h.service.List(r.Context(), ListFilter{IsRead: isRead})
	if err != nil {
		h.fail(w, r, "list contact messages", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newListResponse(items, page, size, paged))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "get contact message", err)
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get contact message", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "delete contact message", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete contact message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "mark contact message read", err)
		return
	}
	m, err := h.service.MarkAsRead(r.Context(), id)
	if err != nil {
		h.fail(w, r, "mark contact message read", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}
