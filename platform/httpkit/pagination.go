package httpkit

import (
	"strconv"

	"spotter_portal_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResponse is the paginated envelope: count of all matching rows plus
// absolute links to the neighbouring pages.
type PageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// ParsePage reads page and page_size from the query string.
func ParsePage(c *gin.Context) (Page, error) {
	page := Page{Number: 1, Size: DefaultPageSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, apperr.FieldValidation("page", "page must be a positive integer")
		}
		page.Number = n
	}

	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPageSize {
			return Page{}, apperr.FieldValidation("page_size", "page_size must be between 1 and "+strconv.Itoa(MaxPageSize))
		}
		page.Size = n
	}

	return page, nil
}

// NewPageResponse builds the envelope for results of page out of count rows.
func NewPageResponse[T any](c *gin.Context, page Page, count int, results []T) PageResponse[T] {
	if results == nil {
		results = []T{}
	}
	resp := PageResponse[T]{Count: count, Results: results}

	if page.Number*page.Size < count {
		next := pageURL(c, page.Number+1, page.Size)
		resp.Next = &next
	}
	if page.Number > 1 {
		prev := pageURL(c, page.Number-1, page.Size)
		resp.Previous = &prev
	}
	return resp
}

func pageURL(c *gin.Context, number, size int) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	query := c.Request.URL.Query()
	query.Set("page", strconv.Itoa(number))
	query.Set("page_size", strconv.Itoa(size))

	return scheme + "://" + c.Request.Host + c.Request.URL.Path + "?" + query.Encode()
}
