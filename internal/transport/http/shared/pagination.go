package shared

import (
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

// Page is a slice of a larger list plus the size of the whole list.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	limit := defaultLimit
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Limit: limit, Offset: offset}
}

// Paginate cuts items to the requested window. An offset past the end yields
// an empty page.
func Paginate[T any](items []T, p Pagination) Page[T] {
	start := min(p.Offset, len(items))
	end := min(start+p.Limit, len(items))
	page := make([]T, end-start)
	copy(page, items[start:end])
	return Page[T]{Items: page, Total: len(items), Limit: p.Limit, Offset: p.Offset}
}
