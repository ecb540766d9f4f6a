package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByRoute(t *testing.T) {
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"students", "students", true},
		{"studentDetail", "students", true},
		{"employeeDetail", "employees", true},
		{"classes", "course-classes", true},
		{"finance", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			k, ok := ByRoute(tc.key)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, k.Name)
		})
	}
}

func TestByName(t *testing.T) {
	k, ok := ByName("course-classes")
	assert.True(t, ok)
	assert.Equal(t, "class:create", k.Perm("create"))

	_, ok = ByName("payments")
	assert.False(t, ok)
}

func TestKind_Payload(t *testing.T) {
	values := map[string]string{
		"code": " E01 ", "first_name": "Ada", "family_name": "Lovelace",
		"email": "ada@acme.io", "role": "director", "gender": "F", "extra": "x",
	}

	create := Employees.Payload(values, false)
	assert.Equal(t, map[string]interface{}{
		"code": "E01", "first_name": "Ada", "family_name": "Lovelace",
		"email": "ada@acme.io", "role": "director", "gender": "F",
	}, create)

	update := Employees.Payload(values, true)
	assert.Equal(t, map[string]interface{}{"code": "E01", "first_name": "Ada", "family_name": "Lovelace"}, update)

	// empty optional values are left out, empty required ones are sent for the API to reject
	got := Students.Payload(map[string]string{"first_name": "Bo"}, false)
	assert.Equal(t, map[string]interface{}{"family_name": "", "first_name": "Bo", "dob": "", "gender": ""}, got)
}

func TestRecord_Display(t *testing.T) {
	rec := Record{
		"idx":         float64(42),
		"name":        "Algebra",
		"ratio":       1.5,
		"active":      true,
		"course":      map[string]interface{}{"idx": "c1", "name": "Maths"},
		"term":        map[string]interface{}{"idx": "t1"},
		"instructors": []interface{}{map[string]interface{}{"full_name": "Ada L"}, "Bo", nil},
		"meta":        map[string]interface{}{"b": 2.0, "a": "x"},
	}
	tests := map[string]string{
		"idx":         "42",
		"name":        "Algebra",
		"ratio":       "1.5",
		"active":      "Yes",
		"course":      "Maths",
		"term":        "t1",
		"instructors": "Ada L, Bo",
		"meta":        "a: x, b: 2",
		"missing":     "",
	}
	for field, want := range tests {
		assert.Equal(t, want, rec.Display(field), field)
	}
	assert.Equal(t, "42", rec.Idx())
}

func TestRecord_Values(t *testing.T) {
	rec := Record{
		"idx":      "k1",
		"code":     "ALG-1",
		"course":   map[string]interface{}{"idx": "c1", "name": "Maths"},
		"term_idx": "t9",
	}
	got := rec.Values(CourseClasses.Fields)
	assert.Equal(t, map[string]string{"course_idx": "c1", "term_idx": "t9", "code": "ALG-1"}, got)
}
