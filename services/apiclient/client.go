// Package apiclient talks to the tenant REST API on behalf of one dashboard session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/auth"
)

const maxBodySize = 10 << 20

type Config struct {
	Scheme        string
	BaseDomain    string
	DefaultTenant string
	Timeout       time.Duration
}

func ConfigFrom(conf *core.Config) Config {
	return Config{
		Scheme:        conf.API.Scheme,
		BaseDomain:    conf.API.BaseDomain,
		DefaultTenant: conf.API.DefaultTenant,
		Timeout:       conf.API.Timeout,
	}
}

// TenantFromHost returns the tenant identifier of a request host: its first label
// (acme.vims.io -> acme). Hosts without a domain (localhost, IPs) use fallback when set.
func TenantFromHost(host, fallback string) string {
	h := host
	if hh, _, err := net.SplitHostPort(host); err == nil {
		h = hh
	}
	h = strings.ToLower(strings.Trim(h, "[]"))
	if net.ParseIP(h) != nil || !strings.Contains(h, ".") {
		if fallback != "" {
			return fallback
		}
	}
	return strings.SplitN(h, ".", 2)[0]
}

// BaseURL is the API root of a tenant: <scheme>://<tenant>.<base domain>/api
func (conf Config) BaseURL(tenant string) string {
	scheme := conf.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s.%s/api", scheme, tenant, conf.BaseDomain)
}

// Credentials is the session's credential slot. Save and Clear are the only writers.
type Credentials interface {
	Load(ctx context.Context) (*auth.Bundle, error)
	Save(ctx context.Context, b auth.Bundle) error
	Clear(ctx context.Context) error
}

// Observer is notified of refreshes and failed calls.
type Observer interface {
	ObserveRefresh(tenant string, err error)
	ObserveError(tenant string, kind Kind)
}

type nopObserver struct{}

func (nopObserver) ObserveRefresh(string, error) {}
func (nopObserver) ObserveError(string, Kind)    {}

// Client is bound to one tenant and one session.
type Client struct {
	baseURL  string
	tenant   string
	timeout  time.Duration
	http     *http.Client
	creds    Credentials
	gate     *refreshGate
	observer Observer
}

// NewClient returns a client with its own refresh gate. Clients sharing a session must share
// a gate; use a Pool for that.
func NewClient(baseURL, tenant string, httpClient *http.Client, creds Credentials, observer Observer) *Client {
	return newClient(baseURL, tenant, httpClient, creds, observer, newRefreshGate())
}

func newClient(baseURL, tenant string, httpClient *http.Client, creds Credentials, observer Observer, gate *refreshGate) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenant:   tenant,
		timeout:  httpClient.Timeout,
		http:     httpClient,
		creds:    creds,
		gate:     gate,
		observer: observer,
	}
}

func (c *Client) Tenant() string { return c.tenant }

// call is the record of one logical API call, replays included.
type call struct {
	method    string
	path      string
	query     url.Values
	body      []byte
	out       interface{}
	anonymous bool   // sent without the bearer token
	retries   int    // refresh replays so far; at most one
	token     string // access token of the last attempt
}

func newCall(method, path string, query url.Values, in, out interface{}) (*call, error) {
	cl := &call{method: method, path: path, query: query, out: out}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		cl.body = data
	}
	return cl, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	cl, err := newCall(method, path, query, in, out)
	if err != nil {
		return err
	}
	return c.execute(ctx, cl)
}

func (c *Client) doAnonymous(ctx context.Context, method, path string, in, out interface{}) error {
	cl, err := newCall(method, path, nil, in, out)
	if err != nil {
		return err
	}
	cl.anonymous = true
	return c.execute(ctx, cl)
}

func (c *Client) execute(ctx context.Context, cl *call) error {
	cl.token = ""
	if !cl.anonymous && c.creds != nil {
		b, err := c.creds.Load(ctx)
		if err != nil {
			return errors.Wrap(err, "loading credentials")
		}
		if b.HasAccess() {
			cl.token = b.Access
		}
	}

	res, err := c.roundTrip(ctx, cl)
	if err != nil {
		err = transportError(ctx, err)
		if apiErr, ok := err.(*Error); ok {
			c.observer.ObserveError(c.tenant, apiErr.Kind)
		}
		return err
	}

	if !cl.anonymous && c.creds != nil && cl.retries == 0 && isTokenNotValid(res.status, res.body) {
		return c.gate.recover(ctx, c, cl)
	}

	if res.status < http.StatusOK || res.status >= http.StatusMultipleChoices {
		apiErr := responseError(res.status, res.body)
		c.observer.ObserveError(c.tenant, apiErr.Kind)
		return apiErr
	}

	if cl.out != nil && len(bytes.TrimSpace(res.body)) > 0 {
		if err = json.Unmarshal(res.body, cl.out); err != nil {
			return &Error{Kind: KindUnknown, Status: res.status, Message: MsgUnexpected, Err: errors.Wrap(err, "decoding response")}
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, cl *call) (*response, error) {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

// clearCredentials ends the session even when the caller's context is done.
func (c *Client) clearCredentials(ctx context.Context) {
	if c.creds == nil {
		return
	}
	_ = c.creds.Clear(context.WithoutCancel(ctx))
}
