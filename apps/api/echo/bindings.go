package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/user"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=full_name,-created_at`: a leading "-" orders descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindUserFilter reads `?search=&role=&role=&created_from=&created_to=` (RFC 3339 times).
// Unparsable times are ignored.
func bindUserFilter(ctx echo.Context) *user.QueryFilter {
	params := ctx.QueryParams()
	filter := &user.QueryFilter{
		Search: params.Get("search"),
		Roles:  params["role"],
	}
	if t, err := time.Parse(time.RFC3339, params.Get("created_from")); err == nil {
		filter.CreatedFrom = t
	}
	if t, err := time.Parse(time.RFC3339, params.Get("created_to")); err == nil {
		filter.CreatedTo = t
	}
	filter.Clean()
	return filter
}

// bindDate reads the `date` param (YYYY-MM-DD), defaulting to today (UTC).
func bindDate(ctx echo.Context) (time.Time, error) {
	val := ctx.QueryParam("date")
	if val == "" {
		return nowFunc().UTC(), nil
	}
	date, err := time.Parse(core.DateLayout, val)
	if err != nil {
		return time.Time{}, core.NewFieldError("date", "date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}
