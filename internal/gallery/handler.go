package gallery

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

const multipartMemory = 8 << 20

// Guard resolves the caller before gallery routes run.
type Guard interface {
	RequireAdmin(next http.Handler) http.Handler
	OptionalAdmin(next http.Handler) http.Handler
}

// Handler exposes gallery endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    Guard
	maxBytes int64
}

// NewHandler builds Handler instance. maxBytes bounds a single upload.
func NewHandler(logger *slog.Logger, service *Service, guard Guard, maxBytes int64) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, maxBytes: maxBytes}
}

// MountRoutes registers gallery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.OptionalAdmin)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdmin)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}", h.patch)
		r.Delete("/{id}", h.delete)
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

func isAdmin(r *http.Request) bool {
	_, ok := shared.ActorFromContext(r.Context())
	return ok
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	isActive, err := httpx.QueryBool(r, "is_active")
	if err != nil {
		h.fail(w, r, "list gallery", err)
		return
	}
	page, size, paged, err := httpx.QueryPage(r)
	if err != nil {
		h.fail(w, r, "list gallery", err)
		return
	}
	items, err := h.service.List(r.Context(), ListFilter{IsActive: isActive}, isAdmin(r))
	if err != nil {
		h.fail(w, r, "list gallery", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newListResponse(items, page, size, paged))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "get gallery image", err)
		return
	}
	img, err := h.service.Get(r.Context(), id, isAdmin(r))
	if err != nil {
		h.fail(w, r, "get gallery image", err)
		return
	}
	httpx.JSON(w, http.StatusOK, img)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	patch, file, err := h.readPayload(w, r)
	if err != nil {
		h.fail(w, r, "decode gallery image", err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	img, err := h.service.Create(r.Context(), patch.Input(), reader(file), shared.ActorID(r.Context()))
	if err != nil {
		h.fail(w, r, "create gallery image", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, img)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "update gallery image", err)
		return
	}
	patch, file, err := h.readPayload(w, r)
	if err != nil {
		h.fail(w, r, "decode gallery image", err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	img, err := h.service.Update(r.Context(), id, patch.Input(), reader(file))
	if err != nil {
		h.fail(w, r, "update gallery image", err)
		return
	}
	httpx.JSON(w, http.StatusOK, img)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "patch gallery image", err)
		return
	}
	patch, file, err := h.readPayload(w, r)
	if err != nil {
		h.fail(w, r, "decode gallery image", err)
		return
	}
	if file != nil {
		defer file.Close()
	}
	img, err := h.service.Patch(r.Context(), id, patch, reader(file))
	if err != nil {
		h.fail(w, r, "patch gallery image", err)
		return
	}
	httpx.JSON(w, http.StatusOK, img)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.fail(w, r, "delete gallery image", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete gallery image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reader keeps a nil ReadCloser from becoming a non-nil io.Reader.
func reader(f io.ReadCloser) io.Reader {
	if f == nil {
		return nil
	}
	return f
}

// readPayload accepts either multipart/form-data with an optional "image" part or a JSON body.
func (h *Handler) readPayload(w http.ResponseWriter, r *http.Request) (ImagePatch, io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var patch ImagePatch
		if err := httpx.DecodeJSON(r, &patch); err != nil {
			return ImagePatch{}, nil, err
		}
		return patch, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ImagePatch{}, nil, httpx.NewFieldErrors("image", "Upload is too large.")
		}
		return ImagePatch{}, nil, httpx.NewFieldErrors("image", "Malformed multipart form.")
	}
	patch, err := formPatch(r)
	if err != nil {
		return ImagePatch{}, nil, err
	}
	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return patch, nil, nil
	case err != nil:
		return ImagePatch{}, nil, httpx.NewFieldErrors("image", "Malformed file upload.")
	}
	return patch, file, nil
}

func formPatch(r *http.Request) (ImagePatch, error) {
	values := r.MultipartForm.Value
	field := func(name string) (string, bool) {
		v, ok := values[name]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	var patch ImagePatch
	fields := map[string]string{}
	if v, ok := field("title"); ok {
		patch.Title = &v
	}
	if v, ok := field("description"); ok {
		patch.Description = &v
	}
	if v, ok := field("is_active"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			fields["is_active"] = "Must be true or false."
		} else {
			patch.IsActive = &b
		}
	}
	if v, ok := field("order"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			fields["order"] = "Enter a whole number."
		} else {
			patch.Order = &n
		}
	}
	if len(fields) > 0 {
		return ImagePatch{}, &httpx.FieldErrors{Fields: fields}
	}
	return patch, nil
}
