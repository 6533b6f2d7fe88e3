package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core"
)

var (
	sortByParam    = "sortBy"
	sortOrderParam = "sortOrder"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads sortBy (comma-separated fields) and sortOrder (asc|desc,
// applied to all fields) query params.
func (ord *Ordering) Bind(ctx echo.Context) {
	sortBy := ctx.QueryParam(sortByParam)
	if sortBy == "" {
		return
	}
	ascending := !strings.EqualFold(ctx.QueryParam(sortOrderParam), "desc")

	for _, field := range strings.Split(sortBy, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: ascending})
	}
}
