package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/classmeasures/hub/core/notification"
)

type notificationAPI struct {
	hub *notification.Hub
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationAPI{hub: deps.NotifHub}

	g.GET("/notifications", api.notificationQuery, jwt)
}

// notificationQuery returns the most recent events, newest first.
func (api *notificationAPI) notificationQuery(ctx echo.Context) error {
	return respond(ctx, http.StatusOK, echo.Map{"notifications": api.hub.Recent()})
}
