package echoweb

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/vims/core/resource"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/core/user"
	"github.com/trezcool/vims/services/apiclient"
)

const (
	pageSize        = 10
	msgRequired     = "This field is required."
	msgInvalidEmail = "Enter a valid email address."
)

// registerResourceRoutes mounts the create, edit and delete actions of every listed kind.
func registerResourceRoutes(s *server, area *echo.Group) {
	for _, kind := range resource.All {
		d, ok := s.table.Get(kind.ListRoute)
		if kind.ListRoute == "" || !ok {
			continue
		}
		kind := kind
		base := "/" + d.Path
		area.GET(base+"/new", func(ctx echo.Context) error { return s.newForm(ctx, kind, d) }, s.protect(d, kind.Perm("create")))
		area.POST(base, func(ctx echo.Context) error { return s.save(ctx, kind, d, "") }, s.protect(d, kind.Perm("create")))
		area.GET(base+"/:idx/edit", func(ctx echo.Context) error { return s.editForm(ctx, kind, d) }, s.protect(d, kind.Perm("edit")))
		area.POST(base+"/:idx", func(ctx echo.Context) error { return s.save(ctx, kind, d, ctx.Param("idx")) }, s.protect(d, kind.Perm("edit")))
		area.POST(base+"/:idx/delete", func(ctx echo.Context) error { return s.remove(ctx, kind, d) }, s.protect(d, kind.Perm("delete")))
	}
}

// kindOf is the resource kind shown by the route.
func kindOf(d route.Descriptor) (resource.Kind, error) {
	kind, ok := resource.ByRoute(d.Key)
	if !ok {
		return resource.Kind{}, echo.NewHTTPError(http.StatusNotFound)
	}
	return kind, nil
}

type listData struct {
	Kind    resource.Kind
	ListURL string
	Search  string
	Page    *apiclient.Page[resource.Record]

	itemRoute *route.Descriptor
	role      string
}

// ItemURL is the detail page of rec, empty when the user cannot open it.
func (ld listData) ItemURL(rec resource.Record) string {
	if ld.itemRoute == nil || rec.Idx() == "" {
		return ""
	}
	return route.RolePath(ld.role, ld.itemRoute.BuildPath(map[string]string{"idx": url.PathEscape(rec.Idx())}))
}

func (ld listData) PageURL(n int) string {
	q := url.Values{"page": {strconv.Itoa(n)}}
	if ld.Search != "" {
		q.Set("search", ld.Search)
	}
	return ld.ListURL + "?" + q.Encode()
}

func (s *server) resourceList(ctx echo.Context, d route.Descriptor) error {
	kind, err := kindOf(d)
	if err != nil {
		return err
	}
	p := getProfile(ctx)

	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	search := strings.TrimSpace(ctx.QueryParam("search"))

	records, err := getSession(ctx).Client().Records(kind).List(ctx.Request().Context(), apiclient.ListParams{
		Page:     page,
		PageSize: pageSize,
		Search:   search,
	})
	if err != nil {
		return err
	}

	data := listData{
		Kind:    kind,
		ListURL: route.RolePath(p.NormalizedRole(), d.Path),
		Search:  search,
		Page:    records,
		role:    p.NormalizedRole(),
	}
	if item, ok := s.table.Get(kind.ItemRoute); ok && user.CanAccessRoute(p, item) {
		data.itemRoute = &item
	}
	return s.page(ctx, http.StatusOK, tmplList, d, kind.Title, data)
}

type detailData struct {
	Kind    resource.Kind
	ListURL string
	Record  resource.Record
}

func (s *server) resourceDetail(ctx echo.Context, d route.Descriptor) error {
	kind, err := kindOf(d)
	if err != nil {
		return err
	}
	p := getProfile(ctx)

	rec, err := getSession(ctx).Client().Records(kind).Get(ctx.Request().Context(), ctx.Param("idx"))
	if err != nil {
		return err
	}

	listURL := ""
	if list, ok := s.table.Get(kind.ListRoute); ok {
		listURL = route.RolePath(p.NormalizedRole(), list.Path)
	}
	return s.page(ctx, http.StatusOK, tmplDetail, d, kind.Singular+" "+rec.Idx(), detailData{
		Kind:    kind,
		ListURL: listURL,
		Record:  *rec,
	})
}

type formData struct {
	Idx    string
	Kind   resource.Kind
	Error  string
	Action string
	Cancel string
	Values map[string]string
	Fields map[string]string
}

func (s *server) newForm(ctx echo.Context, kind resource.Kind, d route.Descriptor) error {
	listURL := route.RolePath(getProfile(ctx).NormalizedRole(), d.Path)
	return s.page(ctx, http.StatusOK, tmplForm, d, "New "+strings.ToLower(kind.Singular), formData{
		Kind:   kind,
		Action: listURL,
		Cancel: listURL,
		Values: map[string]string{},
	})
}

func (s *server) editForm(ctx echo.Context, kind resource.Kind, d route.Descriptor) error {
	idx := ctx.Param("idx")
	rec, err := getSession(ctx).Client().Records(kind).Get(ctx.Request().Context(), idx)
	if err != nil {
		return err
	}
	return s.page(ctx, http.StatusOK, tmplForm, d, "Edit "+strings.ToLower(kind.Singular), s.itemForm(ctx, kind, d, idx, rec.Values(kind.Fields)))
}

func (s *server) itemForm(ctx echo.Context, kind resource.Kind, d route.Descriptor, idx string, values map[string]string) formData {
	listURL := route.RolePath(getProfile(ctx).NormalizedRole(), d.Path)
	fd := formData{Idx: idx, Kind: kind, Action: listURL, Cancel: listURL, Values: values}
	if idx != "" {
		fd.Action = listURL + "/" + url.PathEscape(idx)
		fd.Cancel = s.recordURL(ctx, kind, d, idx)
	}
	return fd
}

// recordURL is where a saved record is shown: its detail page when the user may open it, else the list.
func (s *server) recordURL(ctx echo.Context, kind resource.Kind, d route.Descriptor, idx string) string {
	p := getProfile(ctx)
	if item, ok := s.table.Get(kind.ItemRoute); ok && idx != "" && user.CanAccessRoute(p, item) {
		return route.RolePath(p.NormalizedRole(), item.BuildPath(map[string]string{"idx": url.PathEscape(idx)}))
	}
	return route.RolePath(p.NormalizedRole(), d.Path)
}

// save creates a record, or updates the record idx.
func (s *server) save(ctx echo.Context, kind resource.Kind, d route.Descriptor, idx string) error {
	form, err := ctx.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	values := make(map[string]string, len(kind.Fields))
	for _, f := range kind.Fields {
		values[f.Name] = strings.TrimSpace(form.Get(f.Name))
	}

	update := idx != ""
	title := "New " + strings.ToLower(kind.Singular)
	if update {
		title = "Edit " + strings.ToLower(kind.Singular)
	}

	if fields := s.checkFields(kind, values, update); len(fields) > 0 {
		fd := s.itemForm(ctx, kind, d, idx, values)
		fd.Fields = fields
		return s.page(ctx, http.StatusBadRequest, tmplForm, d, title, fd)
	}

	records := getSession(ctx).Client().Records(kind)
	var rec *resource.Record
	if update {
		rec, err = records.Update(ctx.Request().Context(), idx, kind.Payload(values, true))
	} else {
		rec, err = records.Create(ctx.Request().Context(), kind.Payload(values, false))
	}
	if err != nil {
		code, msg, fields, ok := s.formError(err)
		if !ok {
			return err
		}
		fd := s.itemForm(ctx, kind, d, idx, values)
		fd.Error, fd.Fields = msg, fields
		return s.page(ctx, code, tmplForm, d, title, fd)
	}

	if saved := rec.Idx(); saved != "" {
		idx = saved
	}
	setFlash(ctx, flashSuccess, kind.Singular+" saved.")
	return ctx.Redirect(http.StatusFound, s.recordURL(ctx, kind, d, idx))
}

func (s *server) checkFields(kind resource.Kind, values map[string]string, update bool) map[string]string {
	fields := make(map[string]string)
	for _, f := range kind.Fields {
		if update && f.CreateOnly {
			continue
		}
		v := values[f.Name]
		switch {
		case v == "" && f.Required:
			fields[f.Name] = msgRequired
		case v != "" && f.Type == resource.FieldEmail && s.deps.Validate.Var(v, "email") != nil:
			fields[f.Name] = msgInvalidEmail
		}
	}
	return fields
}

func (s *server) remove(ctx echo.Context, kind resource.Kind, d route.Descriptor) error {
	idx := ctx.Param("idx")
	if err := getSession(ctx).Client().Records(kind).Delete(ctx.Request().Context(), idx); err != nil {
		return err
	}
	s.deps.Logger.Info("record deleted", map[string]interface{}{"kind": kind.Name, "idx": idx}, getProfile(ctx))
	setFlash(ctx, flashSuccess, kind.Singular+" deleted.")
	return ctx.Redirect(http.StatusFound, route.RolePath(getProfile(ctx).NormalizedRole(), d.Path))
}
