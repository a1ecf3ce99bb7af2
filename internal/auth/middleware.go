package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

// ActorResolver turns a bearer token into an actor.
type ActorResolver interface {
	ActorFromToken(ctx context.Context, raw string) (shared.Actor, error)
}

// Middleware authenticates requests carrying a bearer access token.
type Middleware struct {
	resolver ActorResolver
	logger   *slog.Logger
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(resolver ActorResolver, logger *slog.Logger) *Middleware {
	return &Middleware{resolver: resolver, logger: logger}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func (m *Middleware) resolve(r *http.Request) (shared.Actor, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return shared.Actor{}, ErrMissingToken
	}
	return m.resolver.ActorFromToken(r.Context(), raw)
}

// RequireAdmin rejects requests without a valid staff access token.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := m.resolve(r)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// OptionalAdmin attaches the actor when a valid token is present and lets
// anonymous requests through. Invalid tokens are still rejected.
func (m *Middleware) OptionalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := bearerToken(r); !ok {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.resolve(r)
		if err != nil {
			m.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, httpx.ErrUnauthorized) && !errors.Is(err, httpx.ErrForbidden) {
		m.logger.Error("resolve actor", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if errors.Is(err, httpx.ErrUnauthorized) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	httpx.RespondError(w, err)
}
