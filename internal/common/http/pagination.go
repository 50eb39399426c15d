package http

import (
	"net/http"
	"strconv"

	"github.com/ysamarin/postline/backend/internal/common/constants"
)

// Page is the envelope for every list endpoint.
type Page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// PageParams resolves the requested page number from the ?page query
// parameter, defaulting to the first page. The configured page size is
// clamped to [1, MaxPageSize] so a misconfigured size can never zero out
// the page arithmetic.
func PageParams(r *http.Request, pageSize int) (page, limit, offset int) {
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	page = 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}
	return page, pageSize, (page - 1) * pageSize
}

// NewPage wraps results with count and next/previous page links relative to
// the request URL.
func NewPage(r *http.Request, results any, count, page, pageSize int) Page {
	p := Page{Count: count, Results: results}

	totalPages := (count + pageSize - 1) / pageSize
	if page < totalPages {
		next := pageURL(r, page+1)
		p.Next = &next
	}
	if page > 1 {
		prev := pageURL(r, page-1)
		p.Previous = &prev
	}
	return p
}

func pageURL(r *http.Request, page int) string {
	u := *r.URL
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
