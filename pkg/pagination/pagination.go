// Package pagination handles page/per_page query parameters and the list
// response envelope of the image ledger API.
package pagination

import (
	"net/http"
	"strconv"
)

// Limits applied to every page request.
const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a normalized page request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the first page of DefaultPerPage items.
func DefaultParams() Params {
	return New(0, 0)
}

// New normalizes a page request: a page below 1 becomes 1, a missing or
// non-positive perPage becomes DefaultPerPage and anything above MaxPerPage
// is capped.
func New(page, perPage int) Params {
	page = max(page, 1)
	switch {
	case perPage <= 0:
		perPage = DefaultPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage, Offset: (page - 1) * perPage}
}

// FromRequest reads page and per_page from the query string. Values that are
// not integers are treated as absent.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return New(page, perPage)
}

// Result is the list response body.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult wraps one page of data. A nil slice is rendered as [].
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if params.PerPage > 0 {
		pages = (totalCount + params.PerPage - 1) / params.PerPage
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: pages,
		HasNext:    params.Page < pages,
		HasPrev:    params.Page > 1,
	}
}
