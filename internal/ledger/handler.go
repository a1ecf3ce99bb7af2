package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

// IdempotencyHeader carries the client-chosen key for debt creation.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the ledger over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes. Callers gate them behind admin auth.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Put("/{id}", h.updateCustomer)
		r.Patch("/{id}", h.patchCustomer)
		r.Delete("/{id}", h.deactivateCustomer)
		r.Get("/{id}/debts", h.customerDebts)
	})
	r.Route("/debts", func(r chi.Router) {
		r.Get("/", h.listDebts)
		r.Post("/", h.createDebt)
		r.Get("/{id}", h.getDebt)
		r.Put("/{id}", h.updateDebt)
		r.Patch("/{id}", h.patchDebt)
		r.Delete("/{id}", h.deleteDebt)
		r.Post("/{id}/mark_paid", h.markPaid)
		r.Post("/{id}/mark_unpaid", h.markUnpaid)
	})
	r.Get("/dashboard/stats", h.stats)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if !isDomainError(err) && !errors.Is(err, httpx.ErrUnauthorized) {
		h.logger.Error(op, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// ============================================================================
// CUSTOMERS
// ============================================================================

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	page, size, paged, err := httpx.QueryPage(r)
	if err != nil {
		h.fail(w, r, "list customers", err)
		return
	}
	if q := strings.TrimSpace(r.URL.Query().Get("search")); q != "" {
		customers, err := h.service.SearchCustomers(r.Context(), q)
		if err != nil {
			h.fail(w, r, "search customers", err)
			return
		}
		httpx.JSON(w, http.StatusOK, newListResponse(customers, page, size, paged))
		return
	}
	isActive, err := httpx.QueryBool(r, "is_active")
	if err != nil {
		h.fail(w, r, "list customers", err)
		return
	}
	customers, err := h.service.ListCustomers(r.Context(), isActive)
	if err != nil {
		h.fail(w, r, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newListResponse(customers, page, size, paged))
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in CustomerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "decode customer", err)
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), in, shared.ActorID(r.Context()))
	if err != nil {
		h.fail(w, r, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "get customer", err)
		return
	}
	c, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "update customer", err)
		return
	}
	var in CustomerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "decode customer", err)
		return
	}
	c, err := h.service.UpdateCustomer(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) patchCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "patch customer", err)
		return
	}
	var p CustomerPatch
	if err := httpx.DecodeJSON(r, &p); err != nil {
		h.fail(w, r, "decode customer", err)
		return
	}
	c, err := h.service.PatchCustomer(r.Context(), id, p)
	if err != nil {
		h.fail(w, r, "patch customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deactivateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "deactivate customer", err)
		return
	}
	if _, err := h.service.DeactivateCustomer(r.Context(), id, shared.ActorID(r.Context())); err != nil {
		h.fail(w, r, "deactivate customer", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) customerDebts(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "customer debts", err)
		return
	}
	isPaid, err := httpx.QueryBool(r, "is_paid")
	if err != nil {
		h.fail(w, r, "customer debts", err)
		return
	}
	page, size, paged, err := httpx.QueryPage(r)
	if err != nil {
		h.fail(w, r, "customer debts", err)
		return
	}
	debts, err := h.service.ListCustomerDebts(r.Context(), id, isPaid)
	if err != nil {
		h.fail(w, r, "customer debts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newListResponse(debts, page, size, paged))
}

// ============================================================================
// DEBTS
// ============================================================================

func (h *Handler) listDebts(w http.ResponseWriter, r *http.Request) {
	var (
		filter DebtFilter
		err    error
	)
	if filter.CustomerID, err = httpx.QueryInt64(r, "customer_id"); err != nil {
		h.fail(w, r, "list debts", err)
		return
	}
	if filter.IsPaid, err = httpx.QueryBool(r, "is_paid"); err != nil {
		h.fail(w, r, "list debts", err)
		return
	}
	page, size, paged, err := httpx.QueryPage(r)
	if err != nil {
		h.fail(w, r, "list debts", err)
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("debt_type")); raw != "" {
		t := DebtType(strings.ToUpper(raw))
		filter.DebtType = &t
	}
	debts, err := h.service.ListDebts(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list debts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newListResponse(debts, page, size, paged))
}

func (h *Handler) createDebt(w http.ResponseWriter, r *http.Request) {
	var in DebtInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, "decode debt", err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	d, err := h.service.CreateDebt(r.Context(), in, shared.ActorID(r.Context()), key)
	if err != nil {
		h.fail(w, r, "create debt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) getDebt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "get debt", err)
		return
	}
	d, err := h.service.GetDebt(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) updateDebt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "update debt", err)
		return
	}
	var up DebtUpdate
	if err := httpx.DecodeJSON(r, &up); err != nil {
		h.fail(w, r, "decode debt", err)
		return
	}
	d, err := h.service.UpdateDebt(r.Context(), id, up, shared.ActorID(r.Context()))
	if err != nil {
		h.fail(w, r, "update debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) patchDebt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "patch debt", err)
		return
	}
	var p DebtPatch
	if err := httpx.DecodeJSON(r, &p); err != nil {
		h.fail(w, r, "decode debt", err)
		return
	}
	d, err := h.service.PatchDebt(r.Context(), id, p, shared.ActorID(r.Context()))
	if err != nil {
		h.fail(w, r, "patch debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) deleteDebt(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "delete debt", err)
		return
	}
	if err := h.service.DeleteDebt(r.Context(), id, shared.ActorID(r.Context())); err != nil {
		h.fail(w, r, "delete debt", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "mark paid", err)
		return
	}
	d, err := h.service.MarkPaid(r.Context(), id, shared.ActorID(r.Context()))
	if err != nil {
		h.fail(w, r, "mark paid", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) markUnpaid(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "mark unpaid", err)
		return
	}
	d, err := h.service.MarkUnpaid(r.Context(), id, shared.ActorID(r.Context()))
	if err != nil {
		h.fail(w, r, "mark unpaid", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "dashboard stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// listResponse is the envelope of every listing endpoint.
type listResponse[T any] struct {
	Count      int `json:"count"`
	Page       int `json:"page,omitempty"`
	PageSize   int `json:"page_size,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	Results    []T `json:"results"`
}

func newListResponse[T any](items []T, page, size int, paged bool) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	if !paged {
		return listResponse[T]{Count: len(items), Results: items}
	}
	results, meta := shared.Paginate(items, page, size)
	return listResponse[T]{
		Count:      meta.Total,
		Page:       meta.Page,
		PageSize:   meta.PerPage,
		TotalPages: meta.TotalPages,
		Results:    results,
	}
}
