package pagination

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

const (
	// DefaultLimit applies when the request names no limit
	DefaultLimit = 20
	// MaxLimit caps the limit a caller may ask for
	MaxLimit = 100
)

// ErrInvalidQuery is returned for a page or limit that is not a positive integer
var ErrInvalidQuery = errors.New("page and limit must be positive integers")

// Query is the window a list endpoint was asked for
type Query struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

// Parse reads page and limit from the query string. Missing values select the
// first page of DefaultLimit items and a larger limit than MaxLimit is capped.
func Parse(c *fiber.Ctx) (Query, error) {
	q := Query{Page: 1, Limit: DefaultLimit}
	if err := c.QueryParser(&q); err != nil {
		return Query{}, errors.Wrap(ErrInvalidQuery, err.Error())
	}
	if q.Page < 1 || q.Limit < 1 {
		return Query{}, ErrInvalidQuery
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q, nil
}

// Offset is the number of rows before the page
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Meta describes where a page sits in the full result
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Page is one page of a list result
type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// NewPage wraps items fetched for q out of total matching rows
func NewPage[T any](items []T, q Query, total int64) *Page[T] {
	pages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Data: items,
		Meta: Meta{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: pages,
			HasNext:    q.Page < pages,
			HasPrev:    q.Page > 1,
		},
	}
}
