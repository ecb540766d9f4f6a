// Package metrics exposes the dashboard's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/vims/services/apiclient"
)

// Login outcomes.
const (
	LoginSuccess     = "success"
	LoginFailed      = "failed"
	LoginInvalid     = "invalid"
	LoginRateLimited = "rate_limited"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	APIRefreshesTotal *prometheus.CounterVec
	APIErrorsTotal    *prometheus.CounterVec

	GuardDecisionsTotal *prometheus.CounterVec
	LoginsTotal         *prometheus.CounterVec
}

var _ apiclient.Observer = (*Metrics)(nil)

// New registers the collectors on a registry of their own, with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vims_http_requests_total",
				Help: "Total number of dashboard requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vims_http_request_duration_seconds",
				Help:    "Dashboard request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		APIRefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vims_api_token_refreshes_total",
				Help: "Total number of access token refreshes",
			},
			[]string{"tenant", "status"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vims_api_errors_total",
				Help: "Total number of failed tenant API calls",
			},
			[]string{"tenant", "kind"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vims_guard_decisions_total",
				Help: "Total number of route guard decisions",
			},
			[]string{"guard", "state"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vims_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.APIRefreshesTotal,
		m.APIErrorsTotal,
		m.GuardDecisionsTotal,
		m.LoginsTotal,
	)
	return m
}

func (m *Metrics) ObserveRefresh(tenant string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.APIRefreshesTotal.WithLabelValues(tenant, status).Inc()
}

func (m *Metrics) ObserveError(tenant string, kind apiclient.Kind) {
	m.APIErrorsTotal.WithLabelValues(tenant, kind.String()).Inc()
}

func (m *Metrics) ObserveGuard(guard, state string) {
	m.GuardDecisionsTotal.WithLabelValues(guard, state).Inc()
}

func (m *Metrics) ObserveLogin(result string) {
	m.LoginsTotal.WithLabelValues(result).Inc()
}

// Middleware counts requests by route pattern, never by raw path.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
