package echoweb

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/guard"
	"github.com/trezcool/vims/core/route"
)

const (
	accessRequestTemplate = "access_request"
	msgAccessRequested    = "Your request has been sent to the administrators."
	maxReasonLength       = 1000
)

type accessRequestData struct {
	Email  string
	Role   string
	Tenant string
	Path   string
	Reason string
}

// requestAccess mails the administrators on behalf of a user denied a page.
func (s *server) requestAccess(ctx echo.Context) error {
	p := getProfile(ctx)
	role := p.NormalizedRole()
	unauthorized := guard.UnauthorizedPath(s.table, role)

	to := s.deps.Conf.AccessRequestEmail
	if to == "" || s.deps.MailSvc == nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	reqPath := guard.SafeRedirect(ctx.FormValue("path"), route.RolePath(role, s.table.DefaultPathForUser(p)))
	reason := strings.TrimSpace(ctx.FormValue("reason"))
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: to}},
		ReplyTo:      &mail.Address{Name: p.DisplayName(), Address: p.Email},
		Subject:      "Access request from " + p.DisplayName(),
		TemplateName: accessRequestTemplate,
		TemplateData: accessRequestData{
			Email:  p.Email,
			Role:   role,
			Tenant: getSession(ctx).Tenant,
			Path:   reqPath,
			Reason: reason,
		},
	}
	s.deps.MailSvc.SendMessages(msg)
	s.deps.Logger.Info("access requested", map[string]interface{}{"path": reqPath}, p)

	setFlash(ctx, flashSuccess, msgAccessRequested)
	return ctx.Redirect(http.StatusFound, unauthorized)
}
