package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/trezcool/vims/core/user"
	"github.com/trezcool/vims/services/apiclient"
)

// BaseDomain is the API domain of the fake tenants: <tenant>.vims.test
const BaseDomain = "vims.test"

// Account is a user of the fake API.
type Account struct {
	Password string
	Profile  user.Profile
}

// FakeAPI is an in-memory tenant API answering for every tenant of BaseDomain.
// Access tokens are "access-<n>" and stay valid until ExpireTokens is called.
type FakeAPI struct {
	Server *httptest.Server

	mu          sync.Mutex
	accounts    map[string]Account // by email
	activations map[string]string  // uid/token -> email
	access      map[string]string  // token -> email
	refresh     map[string]string  // token -> email
	records     map[string][]map[string]interface{}
	seq         int
	hosts       []string
	meCalls     int
	refreshes   int
	beforeMe    func()
	// RotateRefresh makes refreshes issue a new refresh token.
	RotateRefresh bool
}

func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	api := &FakeAPI{
		accounts:    make(map[string]Account),
		activations: make(map[string]string),
		access:      make(map[string]string),
		refresh:     make(map[string]string),
		records:     make(map[string][]map[string]interface{}),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// Config points clients at the fake API through HTTPClient.
func (api *FakeAPI) Config() apiclient.Config {
	return apiclient.Config{Scheme: "http", BaseDomain: BaseDomain, DefaultTenant: "demo"}
}

// HTTPClient dials the fake server whatever the tenant host.
func (api *FakeAPI) HTTPClient() *http.Client {
	addr := api.Server.Listener.Addr().String()
	dialer := &net.Dialer{}
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}}
}

func (api *FakeAPI) AddAccount(email, password string, p user.Profile) {
	api.mu.Lock()
	defer api.mu.Unlock()
	p.Email = email
	api.accounts[email] = Account{Password: password, Profile: p}
}

// AddActivation registers an invitation for an existing account.
func (api *FakeAPI) AddActivation(uid, token, email string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.activations[uid+"/"+token] = email
}

func (api *FakeAPI) Password(email string) string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.accounts[email].Password
}

// AddRecords seeds a collection.
func (api *FakeAPI) AddRecords(collection string, recs ...map[string]interface{}) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.records[collection] = append(api.records[collection], recs...)
}

func (api *FakeAPI) Records(collection string) []map[string]interface{} {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]map[string]interface{}(nil), api.records[collection]...)
}

// ExpireTokens invalidates every access token issued so far.
func (api *FakeAPI) ExpireTokens() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (api *FakeAPI) RevokeRefreshTokens() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.refresh = make(map[string]string)
}

func (api *FakeAPI) Hosts() []string {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]string(nil), api.hosts...)
}

func (api *FakeAPI) MeCalls() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.meCalls
}

func (api *FakeAPI) Refreshes() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.refreshes
}

func (api *FakeAPI) issue(email string) (string, string) {
	api.seq++
	access := fmt.Sprintf("access-%d", api.seq)
	refresh := fmt.Sprintf("refresh-%d", api.seq)
	api.access[access] = email
	api.refresh[refresh] = email
	return access, refresh
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type obj = map[string]interface{}

// BeforeMe runs fn, outside the API lock, ahead of every profile request.
func (api *FakeAPI) BeforeMe(fn func()) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.beforeMe = fn
}

func (api *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/accounts/my/") {
		api.mu.Lock()
		fn := api.beforeMe
		api.mu.Unlock()
		if fn != nil {
			fn()
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	api.hosts = append(api.hosts, r.Host)

	path := strings.TrimPrefix(r.URL.Path, "/api")
	var body obj
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	str := func(key string) string {
		s, _ := body[key].(string)
		return s
	}

	switch {
	case path == "/accounts/login/" && r.Method == http.MethodPost:
		acc, ok := api.accounts[str("email")]
		if !ok || acc.Password != str("password") {
			writeJSON(w, http.StatusUnauthorized, obj{"detail": "No active account found with the given credentials"})
			return
		}
		access, refresh := api.issue(str("email"))
		tenant := strings.SplitN(r.Host, ".", 2)[0]
		writeJSON(w, http.StatusOK, obj{
			"access": access, "refresh": refresh,
			"tenant": obj{"name": strings.ToUpper(tenant) + " Academy", "short_name": strings.ToUpper(tenant), "theme": obj{"primary": "#123456"}},
		})
		return

	case path == "/accounts/refresh_token/" && r.Method == http.MethodPost:
		api.refreshes++
		email, ok := api.refresh[str("refresh")]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, obj{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		access, refresh := api.issue(email)
		if !api.RotateRefresh {
			delete(api.refresh, refresh)
			writeJSON(w, http.StatusOK, obj{"access": access})
			return
		}
		delete(api.refresh, str("refresh"))
		writeJSON(w, http.StatusOK, obj{"access": access, "refresh": refresh})
		return

	case strings.HasPrefix(path, "/accounts/activate/") && r.Method == http.MethodPost:
		key := strings.Trim(strings.TrimPrefix(path, "/accounts/activate/"), "/")
		email, ok := api.activations[key]
		if !ok {
			writeJSON(w, http.StatusBadRequest, obj{"detail": "Activation link is invalid or has expired."})
			return
		}
		delete(api.activations, key)
		acc := api.accounts[email]
		acc.Password = str("password")
		api.accounts[email] = acc
		writeJSON(w, http.StatusOK, obj{"detail": "Your account has been activated."})
		return
	}

	email, ok := api.access[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, obj{
			"detail": "Given token not valid for any token type", "code": "token_not_valid",
		})
		return
	}

	if path == "/accounts/my/" {
		api.meCalls++
		writeJSON(w, http.StatusOK, api.accounts[email].Profile)
		return
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	collection := parts[0]
	if len(parts) == 1 {
		api.serveCollection(w, r, collection, body)
		return
	}
	api.serveItem(w, r, collection, parts[1], body)
}

func (api *FakeAPI) serveCollection(w http.ResponseWriter, r *http.Request, collection string, body obj) {
	switch r.Method {
	case http.MethodGet:
		var matched []obj
		search := strings.ToLower(r.URL.Query().Get("search"))
		for _, rec := range api.records[collection] {
			if search == "" || strings.Contains(strings.ToLower(fmt.Sprint(rec)), search) {
				matched = append(matched, rec)
			}
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		if page < 1 {
			page = 1
		}
		if size < 1 {
			size = 10
		}
		total := (len(matched) + size - 1) / size
		if total == 0 {
			total = 1
		}
		start, end := (page-1)*size, page*size
		if start > len(matched) {
			start = len(matched)
		}
		if end > len(matched) {
			end = len(matched)
		}
		writeJSON(w, http.StatusOK, obj{
			"data": matched[start:end], "total_pages": total, "current_page": page,
			"page_size": size, "total_records": len(matched),
		})

	case http.MethodPost:
		var missing []string
		for k, v := range body {
			if v == "" {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			errs := obj{}
			for _, k := range missing {
				errs[k] = []string{"This field may not be blank."}
			}
			writeJSON(w, http.StatusBadRequest, errs)
			return
		}
		api.seq++
		body["idx"] = fmt.Sprintf("%s-%d", collection, api.seq)
		api.records[collection] = append(api.records[collection], body)
		writeJSON(w, http.StatusCreated, body)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, obj{"detail": "Method not allowed."})
	}
}

func (api *FakeAPI) serveItem(w http.ResponseWriter, r *http.Request, collection, idx string, body obj) {
	recs := api.records[collection]
	pos := -1
	for i, rec := range recs {
		if fmt.Sprint(rec["idx"]) == idx {
			pos = i
			break
		}
	}
	if pos < 0 {
		writeJSON(w, http.StatusNotFound, obj{"detail": "Not found."})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, recs[pos])
	case http.MethodPut, http.MethodPatch:
		for k, v := range body {
			recs[pos][k] = v
		}
		writeJSON(w, http.StatusOK, recs[pos])
	case http.MethodDelete:
		api.records[collection] = append(recs[:pos:pos], recs[pos+1:]...)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, obj{"detail": "Method not allowed."})
	}
}
