package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery marks a client query that was rejected before touching the store.
var ErrInvalidQuery = errors.New("invalid query")

const (
	// DefaultPage is the first page of a book listing.
	DefaultPage = 1
	// DefaultLimit is the page size of a book listing.
	DefaultLimit = 30
)

// PriceFilterType selects how BookFilter.Price is compared.
type PriceFilterType string

const (
	PriceGreaterThan PriceFilterType = "greater_than"
	PriceLessThan    PriceFilterType = "less_than"
	PriceEqual       PriceFilterType = "equal"
)

// BookQuery is the raw listing request as received from a client.
type BookQuery struct {
	Page            int      `form:"page"`
	Limit           int      `form:"limit"`
	CategoryID      string   `form:"category_id"`
	Title           string   `form:"title"`
	Price           *float64 `form:"price"`
	PriceFilterType string   `form:"price_filter_type"`
}

// PriceFilter compares book prices against Value.
type PriceFilter struct {
	Type  PriceFilterType
	Value float64
}

// BookFilter is a validated listing request ready for the store.
type BookFilter struct {
	CategoryID string
	Title      string
	Price      *PriceFilter
	Offset     int
	Limit      int
}

// Filter validates q and converts it into a BookFilter. Price and
// PriceFilterType must be given together.
func (q BookQuery) Filter() (BookFilter, error) {
	page := q.Page
	if page == 0 {
		page = DefaultPage
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 {
		return BookFilter{}, fmt.Errorf("%w: page must be at least 1", ErrInvalidQuery)
	}
	if limit < 1 {
		return BookFilter{}, fmt.Errorf("%w: limit must be at least 1", ErrInvalidQuery)
	}

	filter := BookFilter{
		CategoryID: q.CategoryID,
		Title:      q.Title,
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}

	switch {
	case q.Price != nil && q.PriceFilterType == "":
		return BookFilter{}, fmt.Errorf("%w: price_filter_type is required when price is provided", ErrInvalidQuery)
	case q.Price == nil && q.PriceFilterType != "":
		return BookFilter{}, fmt.Errorf("%w: price is required when price_filter_type is provided", ErrInvalidQuery)
	case q.Price != nil:
		kind := PriceFilterType(q.PriceFilterType)
		switch kind {
		case PriceGreaterThan, PriceLessThan, PriceEqual:
		default:
			return BookFilter{}, fmt.Errorf("%w: invalid price_filter_type %q", ErrInvalidQuery, q.PriceFilterType)
		}
		filter.Price = &PriceFilter{Type: kind, Value: *q.Price}
	}

	return filter, nil
}
