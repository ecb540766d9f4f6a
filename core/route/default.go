package route

import "github.com/trezcool/vims/core/user"

// View identifiers resolved by the web layer.
const (
	ViewOverview     = "overview"
	ViewEmployees    = "employees"
	ViewEmployee     = "employee_detail"
	ViewStudents     = "students"
	ViewStudent      = "student_detail"
	ViewCourses      = "courses"
	ViewCourse       = "course_detail"
	ViewClasses      = "classes"
	ViewTerms        = "terms"
	ViewEnrollments  = "enrollments"
	ViewFinance      = "finance"
	ViewUnauthorized = "unauthorized"
)

var (
	staff    = []string{user.RoleDirector, user.RoleInstructor, user.RoleTenantAdmin}
	everyone = []string{user.RoleDirector, user.RoleInstructor, user.RoleStudent, user.RoleAccountant, user.RoleTenantAdmin}
	hr       = []string{user.RoleDirector, user.RoleAccountant, user.RoleTenantAdmin}
	learning = []string{user.RoleDirector, user.RoleInstructor, user.RoleStudent, user.RoleTenantAdmin}
)

// Default is the route table of the dashboard.
var Default = MustNewTable(
	Descriptor{Key: "dashboard", Path: "dashboard", View: ViewOverview, Label: "Overview", Icon: "Home", AllowedRoles: everyone},
	Descriptor{Key: "employees", Path: "employees", View: ViewEmployees, Label: "Employees", Icon: "Users", AllowedRoles: hr, Permissions: []string{"employee:view"}},
	Descriptor{Key: "students", Path: "students", View: ViewStudents, Label: "Students", Icon: "IdCard", AllowedRoles: staff, Permissions: []string{"student:view"}},
	Descriptor{Key: "courses", Path: "courses", View: ViewCourses, Label: "Courses", Icon: "BookOpen", AllowedRoles: learning, Permissions: []string{"course:view"}},
	Descriptor{Key: "courseDetail", Path: "courses/:idx", View: ViewCourse, AllowedRoles: learning},
	Descriptor{Key: "employeeDetail", Path: "employees/:idx", View: ViewEmployee, AllowedRoles: hr, Permissions: []string{"employee:detail:view"}},
	Descriptor{Key: "studentDetail", Path: "students/:idx", View: ViewStudent, AllowedRoles: staff},
	Descriptor{Key: "classes", Path: "classes", View: ViewClasses, Label: "Classes", Icon: "BookOpenCheck", AllowedRoles: staff},
	Descriptor{Key: "terms", Path: "terms", View: ViewTerms, Label: "Terms", Icon: "TimerIcon", AllowedRoles: staff},
	Descriptor{Key: "enrollments", Path: "enrollments", View: ViewEnrollments, Label: "Enrollments", Icon: "UserCheck", AllowedRoles: staff},
	Descriptor{Key: "finance", Path: "finance", View: ViewFinance, Label: "Finance", Icon: "Calculator", AllowedRoles: []string{user.RoleDirector, user.RoleAccountant}, Permissions: []string{"finance:view"}},
	Descriptor{Key: UnauthorizedKey, Path: "unauthorized", View: ViewUnauthorized, AllowedRoles: []string{user.AnyRole}},
)

// Package-level helpers over the Default table.

func RoutesForRole(role string) []Descriptor { return Default.RoutesForRole(role) }
func DefaultPathForRole(role string) string  { return Default.DefaultPathForRole(role) }
func MenuForRole(role string) []MenuItem     { return Default.MenuForRole(role) }
