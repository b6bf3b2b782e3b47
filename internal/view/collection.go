// Package view holds the client-side view-state machinery: collection
// filtering and pagination, transient notifications, the destructive-action
// confirmation gate, and the exclusive modal variant.
package view

import "strings"

// Filter returns the items whose display fields contain query,
// case-insensitively. A blank query returns the input unchanged, preserving
// order.
func Filter[T any](items []T, query string, fields func(T) string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(fields(item)), q) {
			out = append(out, item)
		}
	}
	return out
}

// Paginate slices items to the given 1-based page. Total pages is at least 1
// even for an empty collection.
func Paginate[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		size = 1
	}
	totalPages := (len(items) + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	lo := (page - 1) * size
	if lo >= len(items) {
		return nil, totalPages
	}
	hi := lo + size
	if hi > len(items) {
		hi = len(items)
	}
	return items[lo:hi], totalPages
}

// Pager tracks the browsing position of one roster list.
type Pager struct {
	Query string
	Page  int
	Size  int
}

// NewPager creates a pager on page 1 with the given fixed page size.
func NewPager(size int) Pager {
	if size <= 0 {
		size = 5
	}
	return Pager{Page: 1, Size: size}
}

// SetQuery updates the search query and always resets to page 1, even when
// the current page would remain valid under the new filter.
func (p *Pager) SetQuery(query string) {
	p.Query = query
	p.Page = 1
}

// Reset returns to page 1, keeping the query.
func (p *Pager) Reset() {
	p.Page = 1
}

// Next advances one page, clamped to totalPages.
func (p *Pager) Next(totalPages int) {
	if p.Page < totalPages {
		p.Page++
	}
}

// Prev goes back one page, clamped to 1.
func (p *Pager) Prev() {
	if p.Page > 1 {
		p.Page--
	}
}

// Apply filters items by the pager's query and slices the current page.
// When the filter leaves the pager past the last page it snaps back to
// page 1, not to the last page, so browsing position stays predictable.
func Apply[T any](p *Pager, items []T, fields func(T) string) ([]T, int) {
	filtered := Filter(items, p.Query, fields)
	_, totalPages := Paginate(filtered, 1, p.Size)
	if p.Page > totalPages {
		p.Page = 1
	}
	pageItems, _ := Paginate(filtered, p.Page, p.Size)
	return pageItems, totalPages
}
