package apiclient

import (
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Pool hands out session-bound clients sharing one http.Client and one refresh gate per session.
type Pool struct {
	conf     Config
	http     *http.Client
	observer Observer

	mu    sync.Mutex
	gates *lru.Cache[string, *refreshGate]
}

// NewPool keeps the refresh gates of at most size sessions.
// httpClient may be nil, in which case one honouring conf.Timeout is created.
func NewPool(conf Config, httpClient *http.Client, observer Observer, size int) (*Pool, error) {
	if size <= 0 {
		size = 1024
	}
	gates, err := lru.New[string, *refreshGate](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating gate cache")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: conf.Timeout}
	}
	return &Pool{conf: conf, http: httpClient, observer: observer, gates: gates}, nil
}

func (p *Pool) Config() Config { return p.conf }

// Client returns the client of a session for tenant.
func (p *Pool) Client(sessionID, tenant string, creds Credentials) *Client {
	return newClient(p.conf.BaseURL(tenant), tenant, p.http, creds, p.observer, p.gate(sessionID))
}

// Anonymous returns a client without credentials, for login and activation.
func (p *Pool) Anonymous(tenant string) *Client {
	return newClient(p.conf.BaseURL(tenant), tenant, p.http, nil, p.observer, newRefreshGate())
}

func (p *Pool) gate(sessionID string) *refreshGate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gates.Get(sessionID); ok {
		return g
	}
	g := newRefreshGate()
	p.gates.Add(sessionID, g)
	return g
}

// Forget drops the session's gate, on logout.
func (p *Pool) Forget(sessionID string) {
	p.gates.Remove(sessionID)
}
