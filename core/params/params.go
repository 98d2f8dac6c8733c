package params

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 20
	MaxPageSize       = 100
)

// QueryParams carries pagination/search values parsed from the query string.
type QueryParams struct {
	PageNumber int
	PageSize   int
	Search     string
}

// NewQueryParams reads page/limit/search from the request, falling back to
// defaults on absent or malformed input.
func NewQueryParams(c echo.Context) *QueryParams {
	qp := &QueryParams{
		PageNumber: DefaultPageNumber,
		PageSize:   DefaultPageSize,
		Search:     c.QueryParam("search"),
	}
	if n, err := strconv.Atoi(c.QueryParam("page")); err == nil && n > 0 {
		qp.PageNumber = n
	}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		qp.PageSize = n
	}
	if qp.PageSize > MaxPageSize {
		qp.PageSize = MaxPageSize
	}
	return qp
}

func (q QueryParams) Offset() int {
	return (q.PageNumber - 1) * q.PageSize
}
