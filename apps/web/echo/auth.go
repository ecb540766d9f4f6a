package echoweb

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vims/core/auth"
	"github.com/trezcool/vims/core/guard"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/services/apiclient"
	"github.com/trezcool/vims/services/metrics"
)

const (
	msgTooManyAttempts = "Too many login attempts. Please wait a moment and try again."
	msgInvalidLink     = "This activation link is invalid."
	msgSignedOut       = "You have been signed out."
)

func registerAuthRoutes(s *server) {
	s.app.GET(guard.LoginPath, s.loginPage, s.public)
	s.app.POST(guard.LoginPath, s.login)
	s.app.POST("/logout", s.logout)
	s.app.GET("/activate", s.activationPage, s.public)
	s.app.POST("/activate", s.activate)
}

type loginData struct {
	Email  string
	From   string
	Error  string
	Fields map[string]string
}

type activationData struct {
	UID    string
	Token  string
	Error  string
	Fields map[string]string
}

func (s *server) loginPage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, tmplLogin, "Sign in", loginData{From: ctx.QueryParam("from")})
}

func (s *server) login(ctx echo.Context) error {
	if ok, wait := s.limiter.allow(ctx.RealIP()); !ok {
		s.deps.Metrics.ObserveLogin(metrics.LoginRateLimited)
		ctx.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		return s.render(ctx, http.StatusTooManyRequests, tmplLogin, "Sign in", loginData{
			Email: ctx.FormValue("email"),
			From:  ctx.FormValue("from"),
			Error: msgTooManyAttempts,
		})
	}

	var form auth.LoginForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}

	p, err := getSession(ctx).Login(ctx.Request().Context(), &form)
	if err != nil {
		code, msg, fields, ok := s.formError(err)
		if !ok {
			return err
		}
		if code == http.StatusBadRequest && fields != nil {
			s.deps.Metrics.ObserveLogin(metrics.LoginInvalid)
		} else {
			s.deps.Metrics.ObserveLogin(metrics.LoginFailed)
		}
		return s.render(ctx, code, tmplLogin, "Sign in", loginData{Email: form.Email, From: form.From, Error: msg, Fields: fields})
	}
	s.deps.Metrics.ObserveLogin(metrics.LoginSuccess)

	role := p.NormalizedRole()
	home := route.RolePath(role, s.table.DefaultPathForRole(role))
	return ctx.Redirect(http.StatusFound, guard.SafeRedirect(form.From, home))
}

func (s *server) logout(ctx echo.Context) error {
	if err := getSession(ctx).Logout(ctx.Request().Context()); err != nil {
		return err
	}
	ctx.SetCookie(s.sessionCookie("", -1))
	setFlash(ctx, flashInfo, msgSignedOut)
	return ctx.Redirect(http.StatusFound, guard.LoginPath)
}

func (s *server) activationPage(ctx echo.Context) error {
	data := activationData{UID: ctx.QueryParam("uid"), Token: ctx.QueryParam("token")}
	if data.UID == "" || data.Token == "" {
		data.Error = msgInvalidLink
	}
	return s.render(ctx, http.StatusOK, tmplActivate, "Activate your account", data)
}

func (s *server) activate(ctx echo.Context) error {
	var form auth.ActivationForm
	if err := ctx.Bind(&form); err != nil {
		return err
	}

	msg, err := getSession(ctx).Activate(ctx.Request().Context(), &form)
	if err != nil {
		code, errMsg, fields, ok := s.formError(err)
		if !ok {
			return err
		}
		return s.render(ctx, code, tmplActivate, "Activate your account", activationData{
			UID: form.UID, Token: form.Token, Error: errMsg, Fields: fields,
		})
	}

	setFlash(ctx, flashSuccess, msg)
	return ctx.Redirect(http.StatusFound, guard.LoginPath)
}

// formError turns a failed form submission into what the form page shows:
// a status code, a message and per-field errors. Other errors are not handled here.
func (s *server) formError(err error) (int, string, map[string]string, bool) {
	var vErrs validator.ValidationErrors
	var apiErr *apiclient.Error
	switch {
	case errors.As(err, &vErrs):
		fields := make(map[string]string, len(vErrs))
		for _, vErr := range vErrs {
			fields[vErr.Field()] = vErr.Translate(s.deps.Translator)
		}
		return http.StatusBadRequest, "", fields, true

	case errors.As(err, &apiErr):
		if apiErr.Kind == apiclient.KindValidation {
			return http.StatusBadRequest, apiErr.Message, apiErr.ValidationError().FieldMap(), true
		}
		code := apiErr.Status
		if code < http.StatusBadRequest {
			code = http.StatusServiceUnavailable
		}
		return code, apiErr.Message, nil, true
	}
	return 0, "", nil, false
}
