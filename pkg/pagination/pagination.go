package pagination

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Params holds skip/limit pagination extracted from a request.
type Params struct {
	Skip  int
	Limit int
}

// FromContext reads ?skip= and ?limit=. Missing values take defaults;
// out-of-range values are rejected with 422 rather than clamped.
func FromContext(c echo.Context) (Params, error) {
	p := Params{Skip: 0, Limit: DefaultLimit}

	if raw := c.QueryParam("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, echo.NewHTTPError(http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		}
		p.Skip = n
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return p, echo.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
		}
		p.Limit = n
	}
	return p, nil
}

// SQL returns the LIMIT and OFFSET clause for SQL queries.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.Limit, p.Skip)
}
