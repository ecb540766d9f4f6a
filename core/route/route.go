// Package route holds the role-scoped route table that drives both routing and the sidebar menu.
package route

import (
	"fmt"
	"strings"

	"github.com/trezcool/vims/core/user"
)

// UnauthorizedKey is the key of the route every role falls back to.
const UnauthorizedKey = "unauthorized"

// Descriptor is one entry of the route table.
// View is an opaque identifier resolved by the web layer's view registry.
// An empty Label hides the route from the menu.
type Descriptor struct {
	Key          string   `json:"key"`
	Path         string   `json:"path"`
	View         string   `json:"view"`
	Label        string   `json:"label,omitempty"`
	Icon         string   `json:"icon,omitempty"`
	AllowedRoles []string `json:"allowed_roles"`
	Permissions  []string `json:"permissions,omitempty"`
}

var _ user.Restricted = Descriptor{}

func (d Descriptor) AccessRestriction() user.Restriction {
	return user.Restriction{Roles: d.AllowedRoles, Permissions: d.Permissions}
}

// clone copies d so callers never share the table's slices.
func (d Descriptor) clone() Descriptor {
	d.AllowedRoles = append([]string(nil), d.AllowedRoles...)
	d.Permissions = append([]string(nil), d.Permissions...)
	return d
}

// InMenu reports whether the route is listed in the sidebar.
func (d Descriptor) InMenu() bool { return d.Label != "" }

// MenuItem is the display projection of a labelled Descriptor.
type MenuItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon"`
}

// Table is an immutable, insertion-ordered list of route descriptors.
type Table struct {
	routes []Descriptor
	byKey  map[string]int
}

// NewTable builds a Table, rejecting empty and duplicate keys.
func NewTable(routes ...Descriptor) (*Table, error) {
	t := &Table{
		routes: make([]Descriptor, 0, len(routes)),
		byKey:  make(map[string]int, len(routes)),
	}
	for _, d := range routes {
		if strings.TrimSpace(d.Key) == "" {
			return nil, fmt.Errorf("route %q: empty key", d.Path)
		}
		if _, dup := t.byKey[d.Key]; dup {
			return nil, fmt.Errorf("route %q: duplicate key", d.Key)
		}
		d.Path = strings.Trim(d.Path, "/")
		d = d.clone()
		t.byKey[d.Key] = len(t.routes)
		t.routes = append(t.routes, d)
	}
	return t, nil
}

// MustNewTable is NewTable that panics on error; for package-level tables.
func MustNewTable(routes ...Descriptor) *Table {
	t, err := NewTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// All returns a copy of every descriptor in insertion order.
func (t *Table) All() []Descriptor {
	routes := make([]Descriptor, len(t.routes))
	for i, d := range t.routes {
		routes[i] = d.clone()
	}
	return routes
}

// Get returns the descriptor stored under key.
func (t *Table) Get(key string) (Descriptor, bool) {
	i, ok := t.byKey[key]
	if !ok {
		return Descriptor{}, false
	}
	return t.routes[i].clone(), true
}

// UnauthorizedPath is the path of the unauthorized route.
func (t *Table) UnauthorizedPath() string {
	if d, ok := t.Get(UnauthorizedKey); ok {
		return d.Path
	}
	return UnauthorizedKey
}

// RoutesForRole returns, in insertion order, every route whose allowed roles hold AnyRole or role
// (case-insensitive). A blank role yields no routes.
func (t *Table) RoutesForRole(role string) []Descriptor {
	role = user.NormalizeRole(role)
	routes := make([]Descriptor, 0)
	if role == "" {
		return routes
	}
	for _, d := range t.routes {
		if allowsRole(d.AllowedRoles, role) {
			routes = append(routes, d.clone())
		}
	}
	return routes
}

// DefaultPathForRole is the landing path of role: the first labelled route, else the first route,
// else the unauthorized path.
func (t *Table) DefaultPathForRole(role string) string {
	return defaultPath(t.RoutesForRole(role), t.UnauthorizedPath())
}

// MenuForRole is the labelled subset of RoutesForRole.
func (t *Table) MenuForRole(role string) []MenuItem {
	return menu(t.RoutesForRole(role))
}

// AccessibleRoutes narrows RoutesForRole with the user's permissions.
func (t *Table) AccessibleRoutes(usr *user.Profile) []Descriptor {
	routes := make([]Descriptor, 0)
	for _, d := range t.RoutesForRole(usr.NormalizedRole()) {
		if user.CanAccessRoute(usr, d) {
			routes = append(routes, d)
		}
	}
	return routes
}

// MenuForUser is the labelled subset of AccessibleRoutes.
func (t *Table) MenuForUser(usr *user.Profile) []MenuItem {
	return menu(t.AccessibleRoutes(usr))
}

// DefaultPathForUser is DefaultPathForRole restricted to the routes the user can access.
func (t *Table) DefaultPathForUser(usr *user.Profile) string {
	return defaultPath(t.AccessibleRoutes(usr), t.UnauthorizedPath())
}

// Match resolves a path relative to the role prefix (e.g. "courses/C-1") to its descriptor
// and path parameters. Static segments win over parameters.
func (t *Table) Match(relPath string) (Descriptor, map[string]string, bool) {
	segs := splitPath(relPath)
	var (
		best       Descriptor
		bestParams map[string]string
		bestScore  = -1
	)
	for _, d := range t.routes {
		params, score, ok := matchSegments(splitPath(d.Path), segs)
		if ok && score > bestScore {
			best, bestParams, bestScore = d, params, score
		}
	}
	return best.clone(), bestParams, bestScore >= 0
}

// BuildPath substitutes params into the descriptor's path.
func (d Descriptor) BuildPath(params map[string]string) string {
	segs := splitPath(d.Path)
	for i, s := range segs {
		if strings.HasPrefix(s, ":") {
			segs[i] = params[s[1:]]
		}
	}
	return strings.Join(segs, "/")
}

// RolePath is the absolute URL path of rel inside role's area.
func RolePath(role, rel string) string {
	return "/" + user.NormalizeRole(role) + "/" + strings.TrimLeft(rel, "/")
}

func allowsRole(allowed []string, role string) bool {
	for _, r := range allowed {
		r = user.NormalizeRole(r)
		if r == user.AnyRole || r == role {
			return true
		}
	}
	return false
}

func defaultPath(routes []Descriptor, fallback string) string {
	if len(routes) == 0 {
		return fallback
	}
	for _, d := range routes {
		if d.InMenu() {
			return d.Path
		}
	}
	return routes[0].Path
}

func menu(routes []Descriptor) []MenuItem {
	items := make([]MenuItem, 0, len(routes))
	for _, d := range routes {
		if d.InMenu() {
			items = append(items, MenuItem{Label: d.Label, Path: d.Path, Icon: d.Icon})
		}
	}
	return items
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, segs []string) (map[string]string, int, bool) {
	if len(pattern) != len(segs) {
		return nil, 0, false
	}
	params := make(map[string]string)
	score := 0
	for i, p := range pattern {
		switch {
		case strings.HasPrefix(p, ":"):
			if segs[i] == "" {
				return nil, 0, false
			}
			params[p[1:]] = segs[i]
		case strings.EqualFold(p, segs[i]):
			score++
		default:
			return nil, 0, false
		}
	}
	return params, score, true
}
