package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination holds the parsed page selection for a list request
type Pagination struct {
	Page    int
	PerPage int
}

// ParsePagination reads page and per_page from the query string. Missing,
// unparseable or out-of-range values fall back to sane defaults rather
// than erroring; per_page is capped at 100.
func ParsePagination(r *http.Request) Pagination {
	p := Pagination{Page: 1, PerPage: defaultPerPage}
	if page := queryInt(r, "page"); page > 0 {
		p.Page = page
	}
	if per := queryInt(r, "per_page"); per > 0 {
		p.PerPage = per
		if p.PerPage > maxPerPage {
			p.PerPage = maxPerPage
		}
	}
	return p
}

// Offset returns the row offset of the selected page
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// TotalPages returns the page count for total rows. An empty result set
// still counts as one page so clients always have a first page to render.
func (p Pagination) TotalPages(total int64) int {
	pages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if pages < 1 {
		return 1
	}
	return pages
}

// queryInt parses an integer query parameter, returning 0 when absent
// or invalid
func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
