package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/user"
)

var (
	errUserNotInCtx      = errors.New("user object not found in echo.Context")
	noPermsToSetRolesMsg = "not enough rights to set these roles"
)

type userAPI struct {
	service  *user.Service
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userAPI{service: deps.UserSvc, validate: deps.Validate}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.userLogin)
	ug.POST("/password-reset", api.userResetPassword)
	ug.POST("/password-reset-confirm", api.userConfirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.POST("/token-refresh", api.userRefreshToken)
	ag.POST("/register", api.userCreate, adminMiddleware())
	ag.GET("", api.userQuery, adminMiddleware())
	ag.GET("/roles", api.userQueryRoles, adminMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(api.service))
	dg.GET("", api.userRetrieve)
	dg.PUT("", api.userUpdate)
}

func (api *userAPI) userLogin(ctx echo.Context) error {
	data := new(LoginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Username, data.Password, api.service)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"token": token}, "login successful")
}

func (api *userAPI) userRefreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.service)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"token": token}, "token refreshed")
}

func (api *userAPI) userResetPassword(ctx echo.Context) error {
	data := new(PasswordResetRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// always reply OK; no account probing
	if err := api.service.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
	}
	return respond(ctx, http.StatusOK, nil, "If the email address supplied is known, a password reset link has been sent to it.")
}

func (api *userAPI) userConfirmPasswordReset(ctx echo.Context) error {
	data := new(user.ResetUserPassword)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.service.ResetPassword(ctx.Request().Context(), *data); err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, nil, "password has been reset")
}

func (api *userAPI) userCreate(ctx echo.Context) error {
	data := new(user.NewUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate, api.service); err != nil {
		return err
	}

	// ctxUser cannot set a role above their own max role
	ctxUsr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: noPermsToSetRolesMsg})
	}

	usr, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusCreated, echo.Map{"user": usr}, "user created")
}

func (api *userAPI) userQuery(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}
	filter.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.service.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"users": users})
}

func (api *userAPI) userRetrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUserNotInCtx
	}
	return respond(ctx, http.StatusOK, echo.Map{"user": usr})
}

func (api *userAPI) userUpdate(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errUserNotInCtx
	}

	data := new(user.UpdateUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	if !ctxUsr.IsAdmin() {
		// user cannot edit other users
		if usr.ID != ctxUsr.ID {
			return errHTTPForbidden
		}
		// `IsActive`, `Roles`, `Username` and `Email` can only be changed by admin
		if data.IsActive != nil || data.Roles != nil || data.Username != "" || data.Email != "" {
			return errHTTPForbidden
		}
	}

	if err := data.Validate(api.validate, usr, api.service); err != nil {
		return err
	}

	// ctxUser cannot set a role above their own max role
	if user.MaxRolePriority(data.Roles) > user.MaxRolePriority(ctxUsr.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: noPermsToSetRolesMsg})
	}

	usr, err = api.service.Update(ctx.Request().Context(), usr.ID, *data)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"user": usr}, "user updated")
}

func (api *userAPI) userQueryRoles(ctx echo.Context) error {
	return respond(ctx, http.StatusOK, echo.Map{"roles": user.Roles})
}

// ctxUserOrAdminMiddleware resolves the :id user onto the context; only
// admins may address a user other than themselves.
func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Param("id")
			ctxUsr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}

			if id == ctxUsr.ID || ctxUsr.IsAdmin() {
				usr, err := svc.GetByID(ctx.Request().Context(), id)
				if err == nil {
					ctx.Set("object", usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return err
				}
			}
			return errHTTPNotFound
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
