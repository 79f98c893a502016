package utils

import (
	"math"
	"strconv"
)

// Page size bounds for list endpoints.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaginationParams is a normalized page request. Build it with
// GetPaginationParams or ParsePagination.
type PaginationParams struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PaginationMeta is the pagination block of a list response.
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// GetPaginationParams normalizes a page request. Pages start at 1, a
// missing limit takes DefaultPageLimit and larger limits are capped at
// MaxPageLimit.
func GetPaginationParams(page, limit int) PaginationParams {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return PaginationParams{Page: page, Limit: limit}
}

// ParsePagination normalizes raw query values. Unparsable values are
// treated as missing.
func ParsePagination(page, limit string) PaginationParams {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return GetPaginationParams(p, l)
}

// Offset is the number of rows before the requested page.
func (p PaginationParams) Offset() int {
	n := GetPaginationParams(p.Page, p.Limit)
	return (n.Page - 1) * n.Limit
}

// Meta describes the page within total matching rows.
func (p PaginationParams) Meta(total int64) PaginationMeta {
	n := GetPaginationParams(p.Page, p.Limit)
	return PaginationMeta{
		Page:       n.Page,
		Limit:      n.Limit,
		TotalCount: total,
		TotalPages: int(math.Ceil(float64(total) / float64(n.Limit))),
	}
}
