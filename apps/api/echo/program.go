package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/enrollment"
	"github.com/classmeasures/hub/core/program"
	"github.com/classmeasures/hub/core/user"
)

type programAPI struct {
	service    *program.Service
	enrollment *enrollment.Service
	users      *user.Service
	validate   *validator.Validate
}

func registerProgramAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := programAPI{
		service:    deps.ProgramSvc,
		enrollment: deps.EnrollmentSvc,
		users:      deps.UserSvc,
		validate:   deps.Validate,
	}

	pg := g.Group("/programs", jwt)

	pg.GET("/admin/stats", api.programStats, adminMiddleware())
	pg.GET("", api.programQuery)
	pg.POST("", api.programCreate, adminMiddleware())
	pg.GET("/:id", api.programRetrieve)
	pg.PUT("/:id", api.programUpdate, rolesMiddleware(user.RoleAdmin, user.RoleTutor))
	pg.DELETE("/:id", api.programDeactivate, adminMiddleware())
	pg.POST("/:id/enroll", api.programEnroll, rolesMiddleware(user.RoleAdmin, user.RoleTutor))
	pg.DELETE("/:id/unenroll", api.programUnenroll, rolesMiddleware(user.RoleAdmin, user.RoleTutor))
}

func (api *programAPI) programQuery(ctx echo.Context) error {
	filter := new(program.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	progs, err := api.service.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{
		"programs": progs,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

func (api *programAPI) programRetrieve(ctx echo.Context) error {
	prog, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"program": prog})
}

func (api *programAPI) programCreate(ctx echo.Context) error {
	data := new(program.NewProgram)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate, api.service); err != nil {
		return err
	}

	prog, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, echo.Map{"program": prog}, "program created")
}

func (api *programAPI) programUpdate(ctx echo.Context) error {
	prog, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	// a tutor may only update their own program
	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() && prog.TutorID != ctxUsr.ID {
		return errHTTPForbidden
	}

	data := new(program.UpdateProgram)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() {
		// activation state and tutor assignment are admin concerns
		data.IsActive = nil
		data.TutorID = ""
	}
	if err := data.Validate(api.validate, prog, api.service); err != nil {
		return err
	}

	prog, err = api.service.Update(ctx.Request().Context(), prog.ID, *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"program": prog}, "program updated")
}

func (api *programAPI) programDeactivate(ctx echo.Context) error {
	if err := api.service.Deactivate(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, nil, "program deactivated")
}

func (api *programAPI) programEnroll(ctx echo.Context) error {
	data := new(EnrollmentRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	prog, err := api.enrollment.Enroll(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"program": prog}, "student enrolled")
}

func (api *programAPI) programUnenroll(ctx echo.Context) error {
	data := new(EnrollmentRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	prog, err := api.enrollment.Unenroll(ctx.Request().Context(), ctx.Param("id"), data.StudentID)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"program": prog}, "student unenrolled")
}

func (api *programAPI) programStats(ctx echo.Context) error {
	stats, err := api.service.Stats(ctx.Request().Context())
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"stats": stats})
}

type EnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}
