package echoweb

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vims/core/guard"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/services/apiclient"
)

// Guard names, as counted in metrics.
const (
	guardAuth   = "auth"
	guardRoute  = "route"
	guardPublic = "public"
)

// roleArea guards the whole /:role subtree: the user must be signed in with a loaded profile,
// and the role segment must be the user's own role.
func (s *server) roleArea(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		st, err := getState(ctx)
		if err != nil {
			return err
		}

		d := guard.Protected{Table: s.table}.Evaluate(st, ctx.Request().RequestURI)
		if done, err := s.apply(ctx, guardAuth, d, st); done {
			return err
		}

		own := st.Profile.NormalizedRole()
		if !strings.EqualFold(ctx.Param("role"), own) {
			return ctx.Redirect(http.StatusFound, route.RolePath(own, s.table.DefaultPathForRole(own)))
		}
		return next(ctx)
	}
}

// protect guards one route: its roles and permissions plus any extra permission (write actions).
func (s *server) protect(d route.Descriptor, perms ...string) echo.MiddlewareFunc {
	restriction := d.AccessRestriction()
	if len(perms) > 0 {
		restriction.Permissions = append(append([]string(nil), restriction.Permissions...), perms...)
	}
	g := guard.Protected{Restriction: restriction, Table: s.table}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			st, err := getState(ctx)
			if err != nil {
				return err
			}
			if done, err := s.apply(ctx, guardRoute, g.Evaluate(st, ctx.Request().RequestURI), st); done {
				return err
			}
			return next(ctx)
		}
	}
}

// public guards the login and activation pages. An ended session is anonymous there.
func (s *server) public(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		st, err := getState(ctx)
		if errors.Is(err, apiclient.ErrSessionExpired) {
			st, err = guard.Session{}, nil
			ctx.Set(ctxStateKey, st)
		}
		if err != nil {
			return err
		}

		d := guard.Public{Table: s.table}.Evaluate(st, ctx.Request().RequestURI)
		s.deps.Metrics.ObserveGuard(guardPublic, d.State.String())
		if d.Redirect != "" {
			return ctx.Redirect(http.StatusFound, d.Redirect)
		}
		return next(ctx)
	}
}

// apply carries out a protected guard decision. It reports whether the response is settled.
func (s *server) apply(ctx echo.Context, guardName string, d guard.Decision, st guard.Session) (bool, error) {
	s.deps.Metrics.ObserveGuard(guardName, d.State.String())

	switch d.State {
	case guard.Allowed:
		return false, nil
	case guard.ProfileLoading, guard.ProfileError:
		msg := ""
		if st.ProfileError != nil {
			msg = apiclient.Message(st.ProfileError)
			s.deps.Logger.Warn("loading profile", st.ProfileError)
		}
		return true, s.render(ctx, http.StatusOK, tmplLoading, "Loading", msg)
	case guard.Denied:
		if d.Redirect == "" {
			// already on the unauthorized page
			return true, ctx.NoContent(http.StatusOK)
		}
		target := d.Redirect
		if ctx.Request().Method == http.MethodGet {
			target += "?" + url.Values{"from": {ctx.Request().RequestURI}}.Encode()
		}
		s.deps.Logger.Info("access denied", map[string]interface{}{"path": ctx.Request().URL.Path}, st.Profile)
		return true, ctx.Redirect(http.StatusFound, target)
	}
	// NoToken
	return true, ctx.Redirect(http.StatusFound, d.Redirect)
}
