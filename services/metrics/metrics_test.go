package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vims/services/apiclient"
)

func TestMetrics_Observers(t *testing.T) {
	m := New()

	m.ObserveRefresh("acme", nil)
	m.ObserveRefresh("acme", errors.New("boom"))
	m.ObserveRefresh("acme", nil)
	m.ObserveError("acme", apiclient.KindTimeout)
	m.ObserveGuard("protected", "denied")
	m.ObserveLogin(LoginRateLimited)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.APIRefreshesTotal.WithLabelValues("acme", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.APIRefreshesTotal.WithLabelValues("acme", "failure")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.APIErrorsTotal.WithLabelValues("acme", "timeout")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.GuardDecisionsTotal.WithLabelValues("protected", "denied")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.LoginsTotal.WithLabelValues(LoginRateLimited)))
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/:role/students/:idx", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	for _, path := range []string{"/director/students/1", "/director/students/2", "/nowhere/at/all/really"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, 2.0, promtest.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/:role/students/:idx", "200")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `vims_http_requests_total{method="GET",route="/:role/students/:idx",status="200"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}
