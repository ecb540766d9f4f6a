package route

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vims/core/user"
)

var testRoles = append([]string{"Director", "INSTRUCTOR", "janitor", ""}, user.AllRoles...)

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func TestNewTable(t *testing.T) {
	_, err := NewTable(Descriptor{Key: "a", Path: "a"}, Descriptor{Key: "a", Path: "b"})
	assert.EqualError(t, err, `route "a": duplicate key`)

	_, err = NewTable(Descriptor{Key: " ", Path: "x"})
	assert.EqualError(t, err, `route "x": empty key`)

	tbl, err := NewTable(Descriptor{Key: "a", Path: "/a/", AllowedRoles: []string{"director"}})
	require.NoError(t, err)
	d, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", d.Path)

	// the table does not alias the caller's slices
	all := tbl.All()
	all[0].AllowedRoles[0] = "student"
	d, _ = tbl.Get("a")
	assert.Equal(t, []string{"director"}, d.AllowedRoles)
}

func TestTable_DescriptorsAreCopies(t *testing.T) {
	tbl := Default
	want, _ := tbl.Get("courses")

	for _, d := range tbl.RoutesForRole("instructor") {
		if d.Key == "courses" {
			d.Permissions[0] = "nothing:real"
			d.AllowedRoles[0] = "*"
		}
	}
	for _, d := range tbl.AccessibleRoutes(&user.Profile{Role: "instructor", UIPermissions: []string{"course:view"}}) {
		if d.Key == "courses" {
			d.Permissions[0] = "nothing:real"
		}
	}
	d, _ := tbl.Get("courses")
	d.AllowedRoles[0] = "*"
	d, _, _ = tbl.Match("courses")
	d.Permissions[0] = "nothing:real"

	got, _ := tbl.Get("courses")
	assert.Equal(t, want, got)
}

func TestTable_RoutesForRole(t *testing.T) {
	for _, role := range testRoles {
		t.Run("role="+role, func(t *testing.T) {
			got := Default.RoutesForRole(role)
			gotKeys := make([]string, 0, len(got))
			for _, d := range got {
				gotKeys = append(gotKeys, d.Key)
			}

			lrole := strings.ToLower(role)
			var wantKeys []string
			for _, d := range Default.All() {
				if lrole != "" && (contains(d.AllowedRoles, user.AnyRole) || contains(d.AllowedRoles, lrole)) {
					wantKeys = append(wantKeys, d.Key)
				}
			}
			assert.ElementsMatch(t, wantKeys, gotKeys)

			// insertion order
			idx := -1
			for _, k := range gotKeys {
				for i, d := range Default.All() {
					if d.Key == k {
						assert.Greater(t, i, idx)
						idx = i
					}
				}
			}
		})
	}
}

func TestTable_RoutesForRole_blankRole(t *testing.T) {
	assert.Empty(t, Default.RoutesForRole(""))
	assert.Empty(t, Default.RoutesForRole("   "))
}

func TestTable_MenuForRole(t *testing.T) {
	for _, role := range testRoles {
		t.Run("role="+role, func(t *testing.T) {
			var want []MenuItem
			for _, d := range Default.RoutesForRole(role) {
				if d.Label != "" {
					want = append(want, MenuItem{Label: d.Label, Path: d.Path, Icon: d.Icon})
				}
			}
			got := Default.MenuForRole(role)
			if len(want) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestTable_MenuForRole_values(t *testing.T) {
	labels := func(items []MenuItem) []string {
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.Label)
		}
		return out
	}

	assert.Equal(t, []string{"Overview", "Courses"}, labels(MenuForRole("student")))
	assert.Equal(t, []string{"Overview", "Employees", "Finance"}, labels(MenuForRole("accountant")))
	assert.Equal(t, []string{"Overview", "Students", "Courses", "Classes", "Terms", "Enrollments"}, labels(MenuForRole("Instructor")))
	assert.Empty(t, MenuForRole("janitor"))
}

func TestTable_DefaultPathForRole(t *testing.T) {
	assert.Equal(t, "dashboard", DefaultPathForRole("student"))
	assert.Equal(t, "dashboard", DefaultPathForRole("DIRECTOR"))
	assert.Equal(t, "unauthorized", DefaultPathForRole("janitor"))
	assert.Equal(t, "unauthorized", DefaultPathForRole(""))

	for _, role := range testRoles {
		routes := Default.RoutesForRole(role)
		got := Default.DefaultPathForRole(role)
		switch {
		case len(routes) == 0:
			assert.Equal(t, Default.UnauthorizedPath(), got, role)
		default:
			want := routes[0].Path
			for _, d := range routes {
				if d.Label != "" {
					want = d.Path
					break
				}
			}
			assert.Equal(t, want, got, role)
		}
	}
}

func TestTable_DefaultPathForRole_noLabelledRoute(t *testing.T) {
	tbl := MustNewTable(
		Descriptor{Key: "hidden", Path: "hidden", AllowedRoles: []string{"student"}},
		Descriptor{Key: "other", Path: "other", AllowedRoles: []string{"student"}},
		Descriptor{Key: UnauthorizedKey, Path: "denied", AllowedRoles: []string{"director"}},
	)
	assert.Equal(t, "hidden", tbl.DefaultPathForRole("student"))
	assert.Equal(t, "denied", tbl.DefaultPathForRole("accountant"))

	noFallback := MustNewTable(Descriptor{Key: "x", Path: "x", AllowedRoles: []string{"director"}})
	assert.Equal(t, "unauthorized", noFallback.DefaultPathForRole("student"))
}

func TestTable_AccessibleRoutes(t *testing.T) {
	instructor := &user.Profile{Role: "instructor", UIPermissions: []string{"course:view"}}

	var keys []string
	for _, d := range Default.AccessibleRoutes(instructor) {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"dashboard", "courses", "courseDetail", "studentDetail", "classes", "terms", "enrollments", "unauthorized"}, keys)

	assert.Equal(t, []MenuItem{
		{Label: "Overview", Path: "dashboard", Icon: "Home"},
		{Label: "Courses", Path: "courses", Icon: "BookOpen"},
		{Label: "Classes", Path: "classes", Icon: "BookOpenCheck"},
		{Label: "Terms", Path: "terms", Icon: "TimerIcon"},
		{Label: "Enrollments", Path: "enrollments", Icon: "UserCheck"},
	}, Default.MenuForUser(instructor))

	assert.Empty(t, Default.AccessibleRoutes(nil))
	assert.Equal(t, "unauthorized", Default.DefaultPathForUser(nil))
}

func TestTable_Match(t *testing.T) {
	tests := []struct {
		path    string
		wantKey string
		params  map[string]string
		found   bool
	}{
		{path: "dashboard", wantKey: "dashboard", params: map[string]string{}, found: true},
		{path: "/courses/", wantKey: "courses", params: map[string]string{}, found: true},
		{path: "courses/C-12", wantKey: "courseDetail", params: map[string]string{"idx": "C-12"}, found: true},
		{path: "Employees/E1", wantKey: "employeeDetail", params: map[string]string{"idx": "E1"}, found: true},
		{path: "courses/C-12/edit", found: false},
		{path: "nope", found: false},
		{path: "", found: false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d, params, ok := Default.Match(tt.path)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.wantKey, d.Key)
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestDescriptor_BuildPath(t *testing.T) {
	d, _ := Default.Get("courseDetail")
	assert.Equal(t, "courses/C-1", d.BuildPath(map[string]string{"idx": "C-1"}))
	assert.Equal(t, "/director/courses/C-1", RolePath("Director", d.BuildPath(map[string]string{"idx": "C-1"})))
}
