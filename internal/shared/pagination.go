package shared

import "math"

// DefaultPageSize applies when a listing is paged without an explicit size.
const DefaultPageSize = 20

// MaxPageSize caps client supplied page sizes.
const MaxPageSize = 100

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"page_size"`
	Total      int `json:"count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Bounds returns the half-open slice range of the current page, clamped to Total.
func (p Pagination) Bounds() (start, end int) {
	start = (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end = start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

// Paginate returns the items of the requested page with its metadata.
func Paginate[T any](items []T, page, perPage int) ([]T, Pagination) {
	p := NewPagination(page, perPage, len(items))
	start, end := p.Bounds()
	return items[start:end], p
}
