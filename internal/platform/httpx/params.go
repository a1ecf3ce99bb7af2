package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// PathID parses a positive int64 URL parameter. A malformed id is reported
// as ErrNotFound since no such resource can exist.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrNotFound, name, raw)
	}
	return id, nil
}

// QueryBool reads an optional boolean query parameter; absent yields nil.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, NewFieldErrors(name, "Must be true or false.")
	}
	return &v, nil
}

// QueryInt64 reads an optional int64 query parameter; absent yields nil.
func QueryInt64(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, NewFieldErrors(name, "Enter a whole number.")
	}
	return &v, nil
}

// QueryPage reads the optional page and page_size parameters. paged is false
// when neither is present.
func QueryPage(r *http.Request) (page, size int, paged bool, err error) {
	p, err := QueryInt64(r, "page")
	if err != nil {
		return 0, 0, false, err
	}
	s, err := QueryInt64(r, "page_size")
	if err != nil {
		return 0, 0, false, err
	}
	if p == nil && s == nil {
		return 0, 0, false, nil
	}
	if p != nil {
		if *p < 1 {
			return 0, 0, false, NewFieldErrors("page", "Must be at least 1.")
		}
		page = int(*p)
	}
	if s != nil {
		if *s < 1 {
			return 0, 0, false, NewFieldErrors("page_size", "Must be at least 1.")
		}
		size = int(*s)
	}
	return page, size, true, nil
}
