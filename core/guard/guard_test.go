package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/core/user"
)

func restrictionOf(t *testing.T, key string) user.Restriction {
	d, ok := route.Default.Get(key)
	if !ok {
		t.Fatalf("route %q not found", key)
	}
	return d.AccessRestriction()
}

func TestProtected_Evaluate(t *testing.T) {
	instructor := &user.Profile{Role: "instructor", UIPermissions: []string{"course:view"}}

	tests := []struct {
		name  string
		guard Protected
		sess  Session
		uri   string
		want  Decision
	}{
		{
			name:  "anonymous is sent to login remembering location",
			guard: Protected{},
			sess:  Session{},
			uri:   "/director/dashboard",
			want:  Decision{State: NoToken, Redirect: "/login?from=%2Fdirector%2Fdashboard"},
		},
		{
			name:  "profile loading suspends",
			guard: Protected{},
			sess:  Session{HasToken: true},
			uri:   "/director/dashboard",
			want:  Decision{State: ProfileLoading},
		},
		{
			name:  "profile error suspends",
			guard: Protected{},
			sess:  Session{HasToken: true, ProfileError: errors.New("boom")},
			uri:   "/director/dashboard",
			want:  Decision{State: ProfileError},
		},
		{
			name:  "auth-only mode allows any role",
			guard: Protected{},
			sess:  Session{HasToken: true, Profile: &user.Profile{Role: "janitor"}},
			uri:   "/janitor",
			want:  Decision{State: Allowed, Render: true},
		},
		{
			name:  "instructor reaches courses",
			guard: Protected{Restriction: restrictionOf(t, "courses")},
			sess:  Session{HasToken: true, Profile: instructor},
			uri:   "/instructor/courses",
			want:  Decision{State: Allowed, Render: true},
		},
		{
			name:  "instructor denied finance",
			guard: Protected{Restriction: restrictionOf(t, "finance")},
			sess:  Session{HasToken: true, Profile: instructor},
			uri:   "/instructor/finance",
			want:  Decision{State: Denied, Redirect: "/instructor/unauthorized"},
		},
		{
			name:  "denied on the unauthorized page does not loop",
			guard: Protected{Restriction: user.Restriction{Roles: []string{"director"}}},
			sess:  Session{HasToken: true, Profile: &user.Profile{Role: "Instructor"}},
			uri:   "/INSTRUCTOR/Unauthorized?x=1",
			want:  Decision{State: Denied},
		},
		{
			name:  "custom fallback",
			guard: Protected{Restriction: user.Restriction{Roles: []string{"director"}}, Fallback: "/nope"},
			sess:  Session{HasToken: true, Profile: instructor},
			uri:   "/instructor/finance",
			want:  Decision{State: Denied, Redirect: "/nope"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.guard.Evaluate(tt.sess, tt.uri))
		})
	}
}

func TestPublic_Evaluate(t *testing.T) {
	g := Public{}

	assert.Equal(t, Decision{State: Anonymous, Render: true}, g.Evaluate(Session{}, "/login"))
	assert.Equal(t, Decision{State: Resolving, Render: true}, g.Evaluate(Session{HasToken: true}, "/login"))
	assert.Equal(t, Decision{State: Resolving, Render: true}, g.Evaluate(Session{HasToken: true, Profile: &user.Profile{}}, "/login"))
	assert.Equal(t,
		Decision{State: AuthenticatedRedirect, Redirect: "/student/dashboard"},
		g.Evaluate(Session{HasToken: true, Profile: &user.Profile{Role: "Student"}}, "/login"),
	)
	assert.Equal(t,
		Decision{State: AuthenticatedRedirect, Redirect: "/janitor/unauthorized"},
		g.Evaluate(Session{HasToken: true, Profile: &user.Profile{Role: "janitor"}}, "/activate"),
	)
	assert.Equal(t,
		Decision{State: AuthenticatedRedirect, Render: true},
		g.Evaluate(Session{HasToken: true, Profile: &user.Profile{Role: "student"}}, "/Student/Dashboard"),
	)
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", LoginURL(""))
	assert.Equal(t, "/login", LoginURL("/login?from=x"))
	assert.Equal(t, "/login?from=%2Fdirector%2Fcourses%3Fpage%3D2", LoginURL("/director/courses?page=2"))
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/director/courses?page=2", SafeRedirect("/director/courses?page=2", "/"))
	assert.Equal(t, "/", SafeRedirect("", "/"))
	assert.Equal(t, "/", SafeRedirect("https://evil.example", "/"))
	assert.Equal(t, "/", SafeRedirect("//evil.example", "/"))
	assert.Equal(t, "/", SafeRedirect("/\\evil.example", "/"))
	assert.Equal(t, "/", SafeRedirect("relative", "/"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "denied", Denied.String())
	assert.Equal(t, "unknown", State(0).String())
}
