package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/session"
	"github.com/classmeasures/hub/core/user"
)

type sessionAPI struct {
	service  *session.Service
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionAPI{service: deps.SessionSvc, validate: deps.Validate}

	sg := g.Group("/sessions", jwt)

	sg.GET("", api.sessionQuery)
	sg.POST("", api.sessionCreate, rolesMiddleware(user.RoleAdmin, user.RoleTutor))
	sg.GET("/:id", api.sessionRetrieve)
	sg.PUT("/:id", api.sessionUpdate, rolesMiddleware(user.RoleAdmin, user.RoleTutor))
}

func (api *sessionAPI) sessionQuery(ctx echo.Context) error {
	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.service.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"sessions": sessions})
}

func (api *sessionAPI) sessionRetrieve(ctx echo.Context) error {
	sess, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"session": sess})
}

func (api *sessionAPI) sessionCreate(ctx echo.Context) error {
	data := new(session.NewSession)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, echo.Map{"session": sess}, "session created")
}

func (api *sessionAPI) sessionUpdate(ctx echo.Context) error {
	data := new(session.UpdateSession)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.service.Update(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"session": sess}, "session updated")
}
