package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/attendance"
	"github.com/classmeasures/hub/core/user"
)

type attendanceAPI struct {
	service  *attendance.Service
	users    *user.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceAPI{service: deps.AttendanceSvc, users: deps.UserSvc, validate: deps.Validate}

	ag := g.Group("/attendance", jwt)

	ag.POST("/mark", api.attendanceMark, rolesMiddleware(user.RoleAdmin, user.RoleTutor))
	ag.GET("", api.attendanceQuery)
	ag.GET("/report", api.attendanceReport)
	ag.GET("/report/export", api.attendanceReportExport)
}

func (api *attendanceAPI) attendanceMark(ctx echo.Context) error {
	data := new(attendance.MarkRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	results, err := api.service.Mark(ctx.Request().Context(), claims.Subject, *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"results": results}, "attendance marked")
}

func (api *attendanceAPI) attendanceQuery(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	records, err := api.service.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"attendance": records})
}

func (api *attendanceAPI) attendanceReport(ctx echo.Context) error {
	filter := new(attendance.ReportFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}

	rows, err := api.service.Report(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"report": rows})
}

// attendanceReportExport streams the report as an xlsx download.
func (api *attendanceAPI) attendanceReportExport(ctx echo.Context) error {
	filter := new(attendance.ReportFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}

	rows, err := api.service.Report(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}

	var buff bytes.Buffer
	if err := attendance.WriteReportXLSX(&buff, rows); err != nil {
		return err
	}

	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", attendance.ReportFilename(*filter)),
	)
	return ctx.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buff.Bytes())
}
