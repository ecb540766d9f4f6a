package echoweb

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/vims/core/auth"
	"github.com/trezcool/vims/core/guard"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/core/session"
	"github.com/trezcool/vims/core/user"
)

const (
	ctxSessionKey = "session"
	ctxStateKey   = "sessionState"
	csrfField     = "_csrf"
	flashCookie   = "vims_flash"
)

// Flash levels.
const (
	flashInfo    = "info"
	flashSuccess = "success"
	flashError   = "error"
)

// sessionMiddleware binds every request to a dashboard session, issuing the cookie on first visit.
func (s *server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id := ""
		if cookie, err := ctx.Cookie(s.deps.Conf.Session.CookieName); err == nil {
			if _, err = uuid.Parse(cookie.Value); err == nil {
				id = cookie.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			ctx.SetCookie(s.sessionCookie(id, s.deps.Conf.Session.TTL))
		}

		tenant := s.deps.Sessions.TenantFromHost(ctx.Request().Host)
		ctx.Set(ctxSessionKey, s.deps.Sessions.Session(id, tenant))
		return next(ctx)
	}
}

func (s *server) sessionCookie(id string, ttl time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     s.deps.Conf.Session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.deps.Conf.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case ttl < 0:
		cookie.MaxAge = -1
	case ttl > 0:
		cookie.MaxAge = int(ttl.Seconds())
	}
	return cookie
}

func getSession(ctx echo.Context) *session.Session {
	sess, _ := ctx.Get(ctxSessionKey).(*session.Session)
	return sess
}

// getState returns the guard view of the session, loading it once per request.
func getState(ctx echo.Context) (guard.Session, error) {
	if st, ok := ctx.Get(ctxStateKey).(guard.Session); ok {
		return st, nil
	}
	st, err := getSession(ctx).State(ctx.Request().Context())
	if err != nil {
		return guard.Session{}, err
	}
	ctx.Set(ctxStateKey, st)
	return st, nil
}

func getProfile(ctx echo.Context) *user.Profile {
	st, _ := ctx.Get(ctxStateKey).(guard.Session)
	return st.Profile
}

type flash struct {
	Level   string
	Message string
}

// setFlash keeps a one-shot message for the next rendered page.
func setFlash(ctx echo.Context, level, msg string) {
	ctx.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(level + ":" + msg),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func popFlash(ctx echo.Context) *flash {
	cookie, err := ctx.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	ctx.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil
	}
	return &flash{Level: parts[0], Message: parts[1]}
}

// pageData is what every page template receives.
type pageData struct {
	AppName string
	Title   string
	CSRF    string
	Flash   *flash
	Profile *user.Profile
	Role    string
	Tenant  *auth.TenantInfo
	Menu    []route.MenuItem
	Active  string // route path of the page, relative to the role
	Data    interface{}
}

func (pd *pageData) TenantName() string {
	if pd.Tenant != nil && pd.Tenant.Name != "" {
		return pd.Tenant.Name
	}
	return pd.AppName
}

func (s *server) newPage(ctx echo.Context, title string, data interface{}) *pageData {
	pd := &pageData{
		AppName: s.deps.Conf.AppName,
		Title:   title,
		Flash:   popFlash(ctx),
		Data:    data,
	}
	if token, ok := ctx.Get(middleware.DefaultCSRFConfig.ContextKey).(string); ok {
		pd.CSRF = token
	}
	if sess := getSession(ctx); sess != nil {
		if b, err := sess.Bundle(ctx.Request().Context()); err == nil && b != nil {
			pd.Tenant = b.Tenant
		}
	}
	if p := getProfile(ctx); p != nil {
		pd.Profile = p
		pd.Role = p.NormalizedRole()
		pd.Menu = s.table.MenuForUser(p)
	}
	return pd
}

func (s *server) render(ctx echo.Context, code int, name, title string, data interface{}) error {
	return ctx.Render(code, name, s.newPage(ctx, title, data))
}
