// Package guard decides what a request to a guarded page should produce, independently of the web framework.
package guard

import (
	"net/url"
	"strings"

	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/core/user"
)

// LoginPath is the entry point of the public area.
const LoginPath = "/login"

// State is the outcome of a guard evaluation.
type State int

const (
	// authenticated area
	NoToken State = iota + 1
	ProfileLoading
	ProfileError
	Denied
	Allowed

	// public area
	Anonymous
	AuthenticatedRedirect
	Resolving
)

var stateNames = map[State]string{
	NoToken:               "no_token",
	ProfileLoading:        "profile_loading",
	ProfileError:          "profile_error",
	Denied:                "denied",
	Allowed:               "allowed",
	Anonymous:             "anonymous",
	AuthenticatedRedirect: "authenticated_redirect",
	Resolving:             "resolving",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Session is the view of the session a guard needs.
type Session struct {
	HasToken     bool
	Profile      *user.Profile
	ProfileError error
}

// Decision tells the caller what to do: redirect to Redirect when set, render when Render is true,
// render nothing (suspend) otherwise.
type Decision struct {
	State    State
	Redirect string
	Render   bool
}

// Protected guards the authenticated area.
// A zero Restriction (no roles) is auth-only mode: any authenticated role is allowed.
type Protected struct {
	Restriction user.Restriction
	// Fallback overrides the role-scoped unauthorized path on denial.
	Fallback string
	Table    *route.Table
}

func (g Protected) table() *route.Table {
	if g.Table != nil {
		return g.Table
	}
	return route.Default
}

// Evaluate runs the authenticated-area state machine for a request to reqURI (path + query).
func (g Protected) Evaluate(sess Session, reqURI string) Decision {
	if !sess.HasToken {
		return Decision{State: NoToken, Redirect: LoginURL(reqURI)}
	}
	if sess.ProfileError != nil {
		return Decision{State: ProfileError}
	}
	if sess.Profile == nil {
		return Decision{State: ProfileLoading}
	}
	if user.CanAccess(sess.Profile, g.Restriction) {
		return Decision{State: Allowed, Render: true}
	}

	target := g.Fallback
	if target == "" {
		target = UnauthorizedPath(g.table(), sess.Profile.Role)
	}
	if samePath(requestPath(reqURI), target) {
		return Decision{State: Denied}
	}
	return Decision{State: Denied, Redirect: target}
}

// Public guards the login and activation pages.
type Public struct {
	Table *route.Table
}

// Evaluate runs the public-area state machine.
func (g Public) Evaluate(sess Session, reqURI string) Decision {
	if !sess.HasToken {
		return Decision{State: Anonymous, Render: true}
	}
	if sess.Profile == nil || sess.Profile.NormalizedRole() == "" {
		return Decision{State: Resolving, Render: true}
	}

	tbl := g.Table
	if tbl == nil {
		tbl = route.Default
	}
	target := route.RolePath(sess.Profile.Role, tbl.DefaultPathForRole(sess.Profile.Role))
	if samePath(requestPath(reqURI), target) {
		return Decision{State: AuthenticatedRedirect, Render: true}
	}
	return Decision{State: AuthenticatedRedirect, Redirect: target}
}

// UnauthorizedPath is the role-scoped unauthorized page, e.g. /instructor/unauthorized.
func UnauthorizedPath(tbl *route.Table, role string) string {
	return route.RolePath(role, tbl.UnauthorizedPath())
}

// LoginURL is the login entry point remembering from as the post-login destination.
func LoginURL(from string) string {
	if from == "" || samePath(requestPath(from), LoginPath) {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"from": {from}}.Encode()
}

// SafeRedirect returns from when it is a local absolute path, fallback otherwise.
func SafeRedirect(from, fallback string) string {
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return fallback
	}
	if u, err := url.Parse(from); err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return from
}

func requestPath(reqURI string) string {
	if i := strings.IndexAny(reqURI, "?#"); i >= 0 {
		return reqURI[:i]
	}
	return reqURI
}

func samePath(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}
