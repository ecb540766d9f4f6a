package echoweb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/guard"
	"github.com/trezcool/vims/services/apiclient"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that turns our errors into pages and redirects.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(s *server, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed || apiclient.IsCanceled(err) {
			return
		}
		req := ctx.Request()

		var (
			code    int
			title   string
			message string
			httpErr *echo.HTTPError
			apiErr  *apiclient.Error
		)

		switch {
		case errors.Is(err, apiclient.ErrSessionExpired):
			s.endSession(ctx, apiclient.Message(err))
			from := ""
			if req.Method == http.MethodGet {
				from = req.RequestURI
			}
			err = ctx.Redirect(http.StatusFound, guard.LoginURL(from))
			logResponseError(ctx, err)
			return

		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			if code == http.StatusNotFound && req.Method == http.MethodGet {
				// unknown top-level paths land on the entry point
				logResponseError(ctx, ctx.Redirect(http.StatusFound, "/"))
				return
			}
			title = http.StatusText(code)
			message = fmt.Sprint(httpErr.Message)

		case errors.As(err, &apiErr):
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				setFlash(ctx, flashError, apiErr.Message)
				logResponseError(ctx, ctx.Redirect(http.StatusFound, backURL(req)))
				return
			}
			code = apiErr.Status
			if apiErr.Kind.IsTransport() || code < http.StatusBadRequest {
				code = http.StatusServiceUnavailable
			}
			if code == http.StatusNotFound {
				logResponseError(ctx, s.notFoundPage(ctx))
				return
			}
			title = http.StatusText(code)
			message = apiErr.Message

		default: // any other error is a server error
			code = http.StatusInternalServerError
			title = http.StatusText(code)
			message = apiclient.MsgUnexpected
			s.deps.Logger.Error(title, errors.Wrap(err, title), getProfile(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		if req.Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = s.render(ctx, code, tmplError, title, message)
		}
		logResponseError(ctx, err)
	}
}

// endSession drops the credentials of an ended session and keeps msg for the login page.
func (s *server) endSession(ctx echo.Context, msg string) {
	if sess := getSession(ctx); sess != nil {
		if err := sess.Logout(context.WithoutCancel(ctx.Request().Context())); err != nil {
			s.deps.Logger.Warn("clearing expired session", err)
		}
	}
	setFlash(ctx, flashError, msg)
}

// backURL is the local page a form was posted from, else the entry point.
func backURL(req *http.Request) string {
	ref, err := url.Parse(req.Referer())
	if err != nil || ref.Host != req.Host {
		return "/"
	}
	return guard.SafeRedirect(ref.RequestURI(), "/")
}

func logResponseError(ctx echo.Context, err error) {
	if err != nil {
		ctx.Echo().Logger.Error(err)
	}
}
