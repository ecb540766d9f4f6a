package echoweb

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/core/user"
	appfs "github.com/trezcool/vims/fs"
)

const templatesDir = "templates/web"

// Page templates.
const (
	tmplLogin        = "login"
	tmplActivate     = "activate"
	tmplLoading      = "loading"
	tmplOverview     = "overview"
	tmplList         = "list"
	tmplDetail       = "detail"
	tmplForm         = "form"
	tmplFinance      = "finance"
	tmplUnauthorized = "unauthorized"
	tmplNotFound     = "not_found"
	tmplError        = "error"
)

var templateFuncs = template.FuncMap{
	"hasPermission": user.HasPermission,
	"canAccess": func(p *user.Profile, roles []string, perms ...string) bool {
		return user.CanAccess(p, user.Restriction{Roles: roles, Permissions: perms})
	},
	"rolePath": route.RolePath,
	"lower":    strings.ToLower,
	"add":      func(a, b int) int { return a + b },
}

// renderer executes the "layout" template of a page, each page being parsed with the layout.
type renderer struct {
	appName string
	pages   map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil)

func newRenderer(appName string) (*renderer, error) {
	pages, err := parsePages(appfs.FS, templatesDir)
	if err != nil {
		return nil, err
	}
	return &renderer{appName: appName, pages: pages}, nil
}

func parsePages(fsys fs.FS, dir string) (map[string]*template.Template, error) {
	fps, err := fs.Glob(fsys, path.Join(dir, "*.gohtml"))
	if err != nil {
		return nil, errors.Wrap(err, "listing web templates")
	}

	pages := make(map[string]*template.Template, len(fps))
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		tmpl, err := template.New(fname).Funcs(templateFuncs).ParseFS(fsys, path.Join(dir, "_layout.gohtml"), fp)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing web template %s", fp)
		}
		pages[strings.TrimSuffix(fname, ".gohtml")] = tmpl.Option("missingkey=zero")
	}
	return pages, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("web template %q not found", name)
	}
	if pd, ok := data.(*pageData); ok && pd.AppName == "" {
		pd.AppName = r.appName
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
