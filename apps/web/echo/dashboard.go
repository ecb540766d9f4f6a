package echoweb

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/vims/core/route"
)

// view renders the page of a route descriptor.
type view func(ctx echo.Context, d route.Descriptor) error

// registry resolves the view identifiers of the route table.
func (s *server) registry() map[string]view {
	return map[string]view{
		route.ViewOverview:     s.overview,
		route.ViewEmployees:    s.resourceList,
		route.ViewStudents:     s.resourceList,
		route.ViewCourses:      s.resourceList,
		route.ViewClasses:      s.resourceList,
		route.ViewTerms:        s.resourceList,
		route.ViewEnrollments:  s.resourceList,
		route.ViewEmployee:     s.resourceDetail,
		route.ViewStudent:      s.resourceDetail,
		route.ViewCourse:       s.resourceDetail,
		route.ViewFinance:      s.finance,
		route.ViewUnauthorized: s.unauthorized,
	}
}

// registerDashboardRoutes mounts every route of the table under /:role.
func registerDashboardRoutes(s *server) {
	area := s.app.Group("/:role", s.roleArea)
	area.GET("", s.roleIndex)

	for _, d := range s.table.All() {
		v, ok := s.views[d.View]
		if !ok {
			s.deps.Logger.Fatal("no view registered for route", map[string]interface{}{"route": d.Key, "view": d.View})
			continue
		}
		d := d
		area.GET("/"+d.Path, func(ctx echo.Context) error { return v(ctx, d) }, s.protect(d))
	}
	registerResourceRoutes(s, area)

	if d, ok := s.table.Get(route.UnauthorizedKey); ok {
		area.POST("/"+d.Path+"/request", s.requestAccess, s.protect(d))
	}
	area.GET("/*", func(ctx echo.Context) error { return s.notFoundPage(ctx) })
}

// roleIndex sends /<role> to the landing page of the user.
func (s *server) roleIndex(ctx echo.Context) error {
	p := getProfile(ctx)
	return ctx.Redirect(http.StatusFound, route.RolePath(p.NormalizedRole(), s.table.DefaultPathForUser(p)))
}

func (s *server) page(ctx echo.Context, code int, name string, d route.Descriptor, title string, data interface{}) error {
	pd := s.newPage(ctx, title, data)
	pd.Active = d.Path
	return ctx.Render(code, name, pd)
}

func (s *server) overview(ctx echo.Context, d route.Descriptor) error {
	return s.page(ctx, http.StatusOK, tmplOverview, d, d.Label, nil)
}

func (s *server) finance(ctx echo.Context, d route.Descriptor) error {
	return s.page(ctx, http.StatusOK, tmplFinance, d, d.Label, nil)
}

type unauthorizedData struct {
	Home       string
	From       string
	CanRequest bool
}

func (s *server) unauthorized(ctx echo.Context, d route.Descriptor) error {
	p := getProfile(ctx)
	from := ctx.QueryParam("from")
	if !strings.HasPrefix(from, route.RolePath(p.NormalizedRole(), "")) {
		from = ""
	}
	return s.page(ctx, http.StatusOK, tmplUnauthorized, d, "Access denied", unauthorizedData{
		Home:       s.table.DefaultPathForUser(p),
		From:       from,
		CanRequest: s.deps.Conf.AccessRequestEmail != "" && s.deps.MailSvc != nil,
	})
}

// notFoundPage is the 404 page of the role area, linking back to the user's landing page.
func (s *server) notFoundPage(ctx echo.Context) error {
	home := ""
	if p := getProfile(ctx); p != nil {
		home = s.table.DefaultPathForUser(p)
	}
	return s.render(ctx, http.StatusNotFound, tmplNotFound, "Page not found", home)
}
