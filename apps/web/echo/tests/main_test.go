package tests

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/vims/apps/web/echo"
	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/session"
	"github.com/trezcool/vims/core/user"
	appfs "github.com/trezcool/vims/fs"
	"github.com/trezcool/vims/services/apiclient"
	"github.com/trezcool/vims/services/email"
	"github.com/trezcool/vims/services/metrics"
	"github.com/trezcool/vims/storage/credentials/inmem"
	"github.com/trezcool/vims/tests"
)

const (
	password   = "s3cret-pass"
	tenantHost = "acme." + testutil.BaseDomain
)

var (
	director = user.Profile{Idx: "u1", Email: "ada@acme.io", Role: "Director", UIPermissions: []string{
		"finance:view", "employee:view", "course:view",
		"student:view", "student:create", "student:edit", "student:delete",
	}}
	instructor = user.Profile{Idx: "u2", Email: "ian@acme.io", Role: "instructor", UIPermissions: []string{"course:view"}}
	student    = user.Profile{Idx: "u3", Email: "sam@acme.io", Role: "student"}
)

type fixture struct {
	api     *testutil.FakeAPI
	app     Server
	metrics *metrics.Metrics
}

type option func(conf *core.Config, deps *ServerDeps)

func withCSRF() option {
	return func(_ *core.Config, deps *ServerDeps) { deps.DisableCSRF = false }
}

func withLoginRate(perSecond float64, burst int) option {
	return func(conf *core.Config, _ *ServerDeps) {
		conf.Login.Rate = perSecond
		conf.Login.Burst = burst
	}
}

// staleProfiles makes cached profiles stale right after login; wait for it with waitStale.
const staleProfiles = 10 * time.Millisecond

func waitStale() { time.Sleep(3 * staleProfiles) }

func withProfileStaleTime(d time.Duration) option {
	return func(conf *core.Config, _ *ServerDeps) { conf.Session.ProfileStaleTime = d }
}

func setup(t *testing.T, opts ...option) fixture {
	t.Helper()

	api := testutil.NewFakeAPI(t)
	api.AddAccount(director.Email, password, director)
	api.AddAccount(instructor.Email, password, instructor)
	api.AddAccount(student.Email, password, student)

	conf := &core.Config{
		AppName:  "VIMS",
		Env:      "TEST",
		TestMode: true,
	}
	conf.Session.CookieName = "vims_session"
	conf.Session.TTL = time.Hour
	conf.Session.ProfileStaleTime = time.Minute
	conf.Session.MaxActive = 64
	conf.AccessRequestEmail = "admin@acme.io"

	logger := testutil.NewLogger(t)
	validate, translator := testutil.NewValidator()
	m := metrics.New()
	deps := ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Metrics:        m,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		DisableCSRF:    true,
	}
	for _, opt := range opts {
		opt(conf, &deps)
	}

	pool, err := apiclient.NewPool(api.Config(), api.HTTPClient(), m, conf.Session.MaxActive)
	require.NoError(t, err)
	store := inmemstore.NewStore(conf.Session.TTL)
	deps.Sessions = session.NewProvider(store, pool, validate, logger, conf.Session.ProfileStaleTime, conf.Session.MaxActive)

	core.ParseEmailTemplates(appfs.FS, "templates/email", true, logger)
	deps.MailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	emailsvc.ResetSentMessages()

	app, err := NewServer(deps)
	require.NoError(t, err)
	return fixture{api: api, app: app, metrics: m}
}

// browser replays the cookies the server sets, like a browser on the acme tenant would.
type browser struct {
	t       *testing.T
	app     http.Handler
	ip      string
	cookies map[string]*http.Cookie
}

func (f fixture) browser(t *testing.T) *browser {
	return &browser{t: t, app: f.app, ip: "192.0.2.1", cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Host = tenantHost
	req.RemoteAddr = b.ip + ":51000"
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	rec := httptest.NewRecorder()
	b.app.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
		} else {
			b.cookies[c.Name] = c
		}
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil)
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, target, form)
}

func (b *browser) login(p user.Profile) {
	b.t.Helper()
	rec := b.post("/login", url.Values{"email": {p.Email}, "password": {password}})
	require.Equal(b.t, http.StatusFound, rec.Code, rec.Body.String())
}
