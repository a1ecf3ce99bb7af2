package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/veresiye/defter/internal/auth"
	"github.com/veresiye/defter/internal/contact"
	"github.com/veresiye/defter/internal/gallery"
	"github.com/veresiye/defter/internal/ledger"
	"github.com/veresiye/defter/internal/observability"
	"github.com/veresiye/defter/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthMiddleware *auth.Middleware
	AuthHandler    *auth.Handler
	LedgerHandler  *ledger.Handler
	GalleryHandler *gallery.Handler
	ContactHandler *contact.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.LedgerHandler != nil && params.AuthMiddleware != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.AuthMiddleware.RequireAdmin)
				params.LedgerHandler.MountRoutes(r)
			})
		}
		if params.GalleryHandler != nil {
			r.Route("/gallery", params.GalleryHandler.MountRoutes)
		}
		if params.ContactHandler != nil {
			r.Route("/contact", params.ContactHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.Config != nil && params.Config.MediaDir != "" {
		prefix := strings.TrimRight(params.Config.MediaURLPrefix, "/")
		if prefix == "" {
			prefix = "/media"
		}
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(mediaDir(params.Config.MediaDir)))
		r.Handle(prefix+"/*", staticCacheHandler(fileServer))
	}

	return r
}

// mediaDir serves files but never directory listings.
type mediaDir string

func (d mediaDir) Open(name string) (http.File, error) {
	f, err := http.Dir(d).Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Uploaded images keep their uuid name, so they are cached for a day.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		next.ServeHTTP(w, r)
	})
}
