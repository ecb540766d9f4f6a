package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vims/services/apiclient"
	"github.com/trezcool/vims/services/metrics"
)

func TestLogin(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name         string
		form         url.Values
		wantCode     int
		wantLocation string
		wantBody     string
	}{
		{
			name:     "invalid form",
			form:     url.Values{"email": {"not-an-email"}},
			wantCode: http.StatusBadRequest,
			wantBody: `class="field-error"`,
		},
		{
			name:     "bad credentials",
			form:     url.Values{"email": {director.Email}, "password": {"nope"}},
			wantCode: http.StatusUnauthorized,
			wantBody: "No active account found with the given credentials",
		},
		{
			name:         "director lands on the overview",
			form:         url.Values{"email": {director.Email}, "password": {password}},
			wantCode:     http.StatusFound,
			wantLocation: "/director/dashboard",
		},
		{
			name:         "returns to the requested page",
			form:         url.Values{"email": {instructor.Email}, "password": {password}, "from": {"/instructor/courses?page=2"}},
			wantCode:     http.StatusFound,
			wantLocation: "/instructor/courses?page=2",
		},
		{
			name:         "ignores foreign destinations",
			form:         url.Values{"email": {student.Email}, "password": {password}, "from": {"//evil.example/phish"}},
			wantCode:     http.StatusFound,
			wantLocation: "/student/dashboard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.browser(t).post("/login", tt.form)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get(echo.HeaderLocation))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}

	assert.Equal(t, float64(3), promtest.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(metrics.LoginSuccess)))
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(metrics.LoginFailed)))
	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(metrics.LoginInvalid)))
}

func TestLogin_PublicGuard(t *testing.T) {
	f := setup(t)

	t.Run("anonymous sees the form", func(t *testing.T) {
		rec := f.browser(t).get("/login?from=%2Fdirector%2Fstudents")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="from" value="/director/students"`)
	})

	t.Run("signed-in users are sent to their dashboard", func(t *testing.T) {
		b := f.browser(t)
		b.login(student)
		rec := b.get("/login")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/student/dashboard", rec.Header().Get(echo.HeaderLocation))
	})

	t.Run("an ended session is anonymous", func(t *testing.T) {
		f := setup(t, withProfileStaleTime(staleProfiles))
		b := f.browser(t)
		b.login(director)
		f.api.ExpireTokens()
		f.api.RevokeRefreshTokens()
		waitStale()

		rec := b.get("/login")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `action="/login"`)
	})
}

func TestLogin_RateLimited(t *testing.T) {
	f := setup(t, withLoginRate(0.001, 2))
	b := f.browser(t)
	form := url.Values{"email": {director.Email}, "password": {"nope"}}

	assert.Equal(t, http.StatusUnauthorized, b.post("/login", form).Code)
	assert.Equal(t, http.StatusUnauthorized, b.post("/login", form).Code)

	rec := b.post("/login", form)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many login attempts")

	other := f.browser(t)
	other.ip = "192.0.2.99"
	other.login(director)

	assert.Equal(t, float64(1), promtest.ToFloat64(f.metrics.LoginsTotal.WithLabelValues(metrics.LoginRateLimited)))
}

func TestLogout(t *testing.T) {
	f := setup(t)
	b := f.browser(t)
	b.login(director)
	require.Equal(t, http.StatusOK, b.get("/director/dashboard").Code)

	rec := b.post("/logout", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = b.get("/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You have been signed out.")

	rec = b.get("/director/dashboard")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?from=%2Fdirector%2Fdashboard", rec.Header().Get(echo.HeaderLocation))
}

func TestSessionExpired(t *testing.T) {
	f := setup(t)
	b := f.browser(t)
	b.login(director)

	f.api.ExpireTokens()
	f.api.RevokeRefreshTokens()

	rec := b.get("/director/students")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?from=%2Fdirector%2Fstudents", rec.Header().Get(echo.HeaderLocation))

	rec = b.get("/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), apiclient.MsgSessionExpired)
}

func TestActivate(t *testing.T) {
	f := setup(t)
	f.api.AddActivation("uid-1", "tok-1", student.Email)

	t.Run("missing link parameters", func(t *testing.T) {
		rec := f.browser(t).get("/activate")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "This activation link is invalid.")
	})

	t.Run("passwords must match", func(t *testing.T) {
		rec := f.browser(t).post("/activate", url.Values{
			"uid": {"uid-1"}, "token": {"tok-1"}, "password": {"n3w-Passw0rd"}, "confirm_password": {"other-Passw0rd"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `class="field-error"`)
	})

	t.Run("success", func(t *testing.T) {
		b := f.browser(t)
		rec := b.get("/activate?uid=uid-1&token=tok-1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `name="token" value="tok-1"`)

		rec = b.post("/activate", url.Values{
			"uid": {"uid-1"}, "token": {"tok-1"}, "password": {"n3w-Passw0rd"}, "confirm_password": {"n3w-Passw0rd"},
		})
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
		assert.Equal(t, "n3w-Passw0rd", f.api.Password(student.Email))

		rec = b.get("/login")
		assert.Contains(t, rec.Body.String(), "Your account has been activated.")
	})

	t.Run("used link", func(t *testing.T) {
		rec := f.browser(t).post("/activate", url.Values{
			"uid": {"uid-1"}, "token": {"tok-1"}, "password": {"n3w-Passw0rd"}, "confirm_password": {"n3w-Passw0rd"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Activation link is invalid or has expired.")
	})
}

func TestCSRF(t *testing.T) {
	f := setup(t, withCSRF())
	b := f.browser(t)

	rec := b.get("/login")
	require.Equal(t, http.StatusOK, rec.Code)
	csrf, ok := b.cookies["_csrf"]
	require.True(t, ok)
	assert.Contains(t, rec.Body.String(), `name="_csrf" value="`+csrf.Value+`"`)

	rec = b.post("/login", url.Values{"email": {director.Email}, "password": {password}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.post("/login", url.Values{"email": {director.Email}, "password": {password}, "_csrf": {"forged"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = b.post("/login", url.Values{"email": {director.Email}, "password": {password}, "_csrf": {csrf.Value}})
	assert.Equal(t, http.StatusFound, rec.Code)
}
