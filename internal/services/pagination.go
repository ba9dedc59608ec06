package services

import "math"

// Page is one window of an ordered result. Items is never nil so it
// serialises as an empty list.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PerPage  int  `json:"per_page"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	NextPage int  `json:"next_page,omitempty"`
	PrevPage int  `json:"prev_page,omitempty"`
}

// window converts a 1-based page number into the offset and limit to query.
// The limit asks for one extra row so the caller can tell whether a next
// page exists. ok is false when the offset is not representable, in which
// case the page is necessarily past the end.
func window(page, perPage int) (offset, limit int, ok bool, err error) {
	if page < 1 {
		return 0, 0, false, invalidf("page must be positive, got %d", page)
	}
	if perPage < 1 {
		return 0, 0, false, invalidf("page size must be positive, got %d", perPage)
	}
	if perPage == math.MaxInt {
		// No room for a lookahead row, and no table holds that many rows.
		return 0, perPage, page == 1, nil
	}
	if page-1 > (math.MaxInt-perPage-1)/perPage {
		return 0, 0, false, nil
	}
	return (page - 1) * perPage, perPage + 1, true, nil
}

// newPage trims the lookahead row fetched by window and fills the
// navigation fields.
func newPage[T any](items []T, page, perPage int) *Page[T] {
	p := &Page[T]{Page: page, PerPage: perPage}
	if len(items) > perPage {
		p.HasNext = true
		p.NextPage = page + 1
		items = items[:perPage]
	}
	if items == nil {
		items = []T{}
	}
	p.Items = items
	if page > 1 {
		p.HasPrev = true
		p.PrevPage = page - 1
	}
	return p
}
