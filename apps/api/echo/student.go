package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/student"
	"github.com/classmeasures/hub/core/user"
)

type studentAPI struct {
	service  *student.Service
	users    *user.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentAPI{service: deps.StudentSvc, users: deps.UserSvc, validate: deps.Validate}

	sg := g.Group("/students", jwt)

	sg.GET("", api.studentQuery)
	sg.POST("", api.studentCreate, adminMiddleware())
	sg.GET("/:id", api.studentRetrieve)
	sg.PUT("/:id", api.studentUpdate, adminMiddleware())
}

// studentQuery lists students; a parent only sees their own children.
func (api *studentAPI) studentQuery(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}
	filter.Clean()

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() && !ctxUsr.IsTutor() {
		filter.ParentID = ctxUsr.ID
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.service.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"students": students})
}

func (api *studentAPI) studentRetrieve(ctx echo.Context) error {
	stu, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.users)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() && !ctxUsr.IsTutor() && stu.ParentID != ctxUsr.ID {
		return errHTTPNotFound
	}
	return respond(ctx, http.StatusOK, echo.Map{"student": stu})
}

func (api *studentAPI) studentCreate(ctx echo.Context) error {
	data := new(student.NewStudent)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, echo.Map{"student": stu}, "student created")
}

func (api *studentAPI) studentUpdate(ctx echo.Context) error {
	stu, err := api.service.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	data := new(student.UpdateStudent)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate, stu); err != nil {
		return err
	}

	stu, err = api.service.Update(ctx.Request().Context(), stu.ID, *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"student": stu}, "student updated")
}
