// Package resource catalogues the entity collections of the tenant API and how the dashboard shows them.
package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Form field types.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldDate     = "date"
	FieldSelect   = "select"
	FieldTextArea = "textarea"
)

type Column struct {
	Field string
	Label string
}

type Option struct {
	Value string
	Label string
}

type Field struct {
	Name       string
	Label      string
	Type       string
	Required   bool
	CreateOnly bool // not sent on updates
	Options    []Option
}

// Kind describes one API collection.
type Kind struct {
	Name       string // collection path segment, e.g. "course-classes"
	Title      string
	Singular   string
	Permission string // permission prefix, e.g. "course" for course:create
	ListRoute  string // route keys, empty when the kind has no page
	ItemRoute  string
	Columns    []Column
	Fields     []Field
}

// Perm returns the UI permission guarding action (create, edit, delete, view) on the kind.
func (k Kind) Perm(action string) string {
	return k.Permission + ":" + action
}

// Payload keeps the form values of the kind's fields. Create-only fields are dropped on updates
// and empty optional values are omitted.
func (k Kind) Payload(values map[string]string, update bool) map[string]interface{} {
	payload := make(map[string]interface{}, len(k.Fields))
	for _, f := range k.Fields {
		if update && f.CreateOnly {
			continue
		}
		v := strings.TrimSpace(values[f.Name])
		if v == "" && !f.Required {
			continue
		}
		payload[f.Name] = v
	}
	return payload
}

var genders = []Option{{Value: "M", Label: "Male"}, {Value: "F", Label: "Female"}}

var (
	Students = Kind{
		Name: "students", Title: "Students", Singular: "Student", Permission: "student",
		ListRoute: "students", ItemRoute: "studentDetail",
		Columns: []Column{
			{"idx", "ID"}, {"family_name", "Family name"}, {"first_name", "First name"},
			{"dob", "Date of birth"}, {"email", "Email"}, {"phone", "Phone"}, {"gender", "Gender"},
		},
		Fields: []Field{
			{Name: "family_name", Label: "Family name", Type: FieldText, Required: true},
			{Name: "first_name", Label: "First name", Type: FieldText, Required: true},
			{Name: "dob", Label: "Date of birth", Type: FieldDate, Required: true},
			{Name: "email", Label: "Email", Type: FieldEmail},
			{Name: "phone", Label: "Phone", Type: FieldText},
			{Name: "gender", Label: "Gender", Type: FieldSelect, Required: true, Options: genders},
		},
	}

	Employees = Kind{
		Name: "employees", Title: "Employees", Singular: "Employee", Permission: "employee",
		ListRoute: "employees", ItemRoute: "employeeDetail",
		Columns: []Column{
			{"idx", "ID"}, {"code", "Code"}, {"first_name", "First name"}, {"family_name", "Family name"},
			{"email", "Email"}, {"role", "Role"}, {"gender", "Gender"},
		},
		Fields: []Field{
			{Name: "code", Label: "Code", Type: FieldText, Required: true},
			{Name: "first_name", Label: "First name", Type: FieldText, Required: true},
			{Name: "family_name", Label: "Family name", Type: FieldText, Required: true},
			{Name: "email", Label: "Email", Type: FieldEmail, Required: true, CreateOnly: true},
			{Name: "role", Label: "Role", Type: FieldSelect, Required: true, CreateOnly: true, Options: []Option{
				{Value: "director", Label: "Director"}, {Value: "instructor", Label: "Instructor"},
				{Value: "accountant", Label: "Accountant"}, {Value: "tenant_admin", Label: "Tenant Admin"},
			}},
			{Name: "gender", Label: "Gender", Type: FieldSelect, Required: true, CreateOnly: true, Options: genders},
		},
	}

	Courses = Kind{
		Name: "courses", Title: "Courses", Singular: "Course", Permission: "course",
		ListRoute: "courses", ItemRoute: "courseDetail",
		Columns: []Column{
			{"idx", "ID"}, {"name", "Name"}, {"code", "Code"}, {"description", "Description"}, {"created_on", "Created on"},
		},
		Fields: []Field{
			{Name: "name", Label: "Name", Type: FieldText, Required: true},
			{Name: "code", Label: "Code", Type: FieldText, Required: true},
			{Name: "description", Label: "Description", Type: FieldTextArea},
		},
	}

	CourseClasses = Kind{
		Name: "course-classes", Title: "Classes", Singular: "Class", Permission: "class",
		ListRoute: "classes",
		Columns: []Column{
			{"idx", "ID"}, {"code", "Code"}, {"course", "Course"}, {"term", "Term"}, {"instructors", "Instructors"},
		},
		Fields: []Field{
			{Name: "course_idx", Label: "Course", Type: FieldText, Required: true},
			{Name: "term_idx", Label: "Term", Type: FieldText, Required: true},
			{Name: "code", Label: "Code", Type: FieldText, Required: true},
		},
	}

	Terms = Kind{
		Name: "terms", Title: "Terms", Singular: "Term", Permission: "term",
		ListRoute: "terms",
		Columns:   []Column{{"idx", "ID"}, {"name", "Name"}, {"start_date", "Start date"}, {"end_date", "End date"}},
		Fields: []Field{
			{Name: "name", Label: "Name", Type: FieldText, Required: true},
			{Name: "start_date", Label: "Start date", Type: FieldDate, Required: true},
			{Name: "end_date", Label: "End date", Type: FieldDate, Required: true},
		},
	}

	Enrollments = Kind{
		Name: "enrollments", Title: "Enrollments", Singular: "Enrollment", Permission: "enrollment",
		ListRoute: "enrollments",
		Columns: []Column{
			{"idx", "ID"}, {"student", "Student"}, {"course_class", "Class"}, {"status", "Status"}, {"comment", "Comment"},
		},
		Fields: []Field{
			{Name: "student_idx", Label: "Student", Type: FieldText, Required: true, CreateOnly: true},
			{Name: "course_class_idx", Label: "Class", Type: FieldText, Required: true},
			{Name: "status", Label: "Status", Type: FieldText},
			{Name: "comment", Label: "Comment", Type: FieldTextArea},
		},
	}

	Custodians = Kind{
		Name: "custodians", Title: "Custodians", Singular: "Custodian", Permission: "custodian",
		Columns: []Column{{"idx", "ID"}, {"name", "Name"}, {"relation", "Relation"}, {"phone", "Phone"}, {"email", "Email"}},
		Fields: []Field{
			{Name: "student_idx", Label: "Student", Type: FieldText, Required: true, CreateOnly: true},
			{Name: "name", Label: "Name", Type: FieldText, Required: true},
			{Name: "relation", Label: "Relation", Type: FieldText, Required: true},
			{Name: "phone", Label: "Phone", Type: FieldText},
			{Name: "email", Label: "Email", Type: FieldEmail},
		},
	}

	Instructors = Kind{
		Name: "instructors", Title: "Instructors", Singular: "Instructor", Permission: "instructor",
		Columns: []Column{{"idx", "ID"}, {"name", "Name"}},
	}

	All = []Kind{Students, Employees, Courses, CourseClasses, Terms, Enrollments, Custodians, Instructors}
)

// ByRoute returns the kind listed (or detailed) by the route key.
func ByRoute(routeKey string) (Kind, bool) {
	for _, k := range All {
		if routeKey != "" && (k.ListRoute == routeKey || k.ItemRoute == routeKey) {
			return k, true
		}
	}
	return Kind{}, false
}

// ByName returns the kind of a collection.
func ByName(name string) (Kind, bool) {
	for _, k := range All {
		if k.Name == name {
			return k, true
		}
	}
	return Kind{}, false
}

// Record is one entity as returned by the API.
type Record map[string]interface{}

func (r Record) Idx() string {
	return r.Display("idx")
}

// Display formats a field for tables: nested entities show their name (or code, or idx) and
// lists are joined with commas.
func (r Record) Display(field string) string {
	return display(r[field])
}

func display(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case map[string]interface{}:
		for _, key := range []string{"name", "full_name", "code", "idx"} {
			if s := display(val[key]); s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+display(val[k]))
		}
		return strings.Join(parts, ", ")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := display(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// Values returns the record's fields as form values.
func (r Record) Values(fields []Field) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		name := f.Name
		if strings.HasSuffix(name, "_idx") {
			if nested, ok := r[strings.TrimSuffix(name, "_idx")].(map[string]interface{}); ok {
				values[name] = display(nested["idx"])
				continue
			}
		}
		values[name] = r.Display(name)
	}
	return values
}
