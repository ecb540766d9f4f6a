// Package session owns the credentials and the profile of every dashboard session.
//
// The bundle is written by Login, by the API client when it refreshes the tokens and by Logout;
// everything else reads it. Profiles are fetched once per session, shared between concurrent
// requests and kept until they go stale.
package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/auth"
	"github.com/trezcool/vims/core/guard"
	"github.com/trezcool/vims/core/user"
	"github.com/trezcool/vims/services/apiclient"
)

const (
	profileFetchTimeout = 30 * time.Second
	// the profile cache sweeps every staleTime/100
	minStaleTime = time.Millisecond
)

var errSessionChanged = errors.New("session changed during profile fetch")

type Provider struct {
	store    auth.Store
	pool     *apiclient.Pool
	validate *validator.Validate
	logger   core.Logger

	profiles *expirable.LRU[string, *user.Profile]
	fetches  singleflight.Group

	// generations of invalidated sessions; a fetch started before an invalidation is dropped
	genMu sync.Mutex
	gens  *lru.Cache[string, uint64]
	gen   uint64
}

// NewProvider keeps the profiles of at most maxActive sessions for staleTime.
// A stale time below a millisecond is raised to one; zero or less never expires profiles.
func NewProvider(
	store auth.Store,
	pool *apiclient.Pool,
	validate *validator.Validate,
	logger core.Logger,
	staleTime time.Duration,
	maxActive int,
) *Provider {
	if maxActive <= 0 {
		maxActive = 1024
	}
	if staleTime > 0 && staleTime < minStaleTime {
		staleTime = minStaleTime
	}
	gens, err := lru.New[string, uint64](maxActive)
	if err != nil {
		// only fails on a non-positive size
		panic(err)
	}
	return &Provider{
		store:    store,
		pool:     pool,
		validate: validate,
		logger:   logger,
		profiles: expirable.NewLRU[string, *user.Profile](maxActive, nil, staleTime),
		gens:     gens,
	}
}

func (p *Provider) generation(key string) uint64 {
	p.genMu.Lock()
	defer p.genMu.Unlock()
	g, _ := p.gens.Get(key)
	return g
}

// cache stores the profile unless the session was invalidated since gen was read.
func (p *Provider) cache(key string, gen uint64, prof *user.Profile) bool {
	p.genMu.Lock()
	defer p.genMu.Unlock()
	if g, _ := p.gens.Get(key); g != gen {
		return false
	}
	p.profiles.Add(key, prof)
	return true
}

func (p *Provider) invalidate(key string) {
	p.genMu.Lock()
	defer p.genMu.Unlock()
	p.gen++
	p.gens.Add(key, p.gen)
	p.profiles.Remove(key)
}

// Session binds the provider to one browser session of a tenant.
func (p *Provider) Session(id, tenant string) *Session {
	return &Session{ID: id, Tenant: tenant, provider: p}
}

// TenantFromHost resolves the tenant of a request host.
func (p *Provider) TenantFromHost(host string) string {
	return apiclient.TenantFromHost(host, p.pool.Config().DefaultTenant)
}

type Session struct {
	ID       string
	Tenant   string
	provider *Provider
}

func (s *Session) key() string {
	return s.Tenant + "|" + s.ID
}

func (s *Session) credentials() auth.SessionCredentials {
	return auth.SessionCredentials{Store: s.provider.store, SessionID: s.ID}
}

// Client returns the API client acting for the session.
func (s *Session) Client() *apiclient.Client {
	return s.provider.pool.Client(s.ID, s.Tenant, s.credentials())
}

// Bundle returns the session's credentials, nil when logged out.
func (s *Session) Bundle(ctx context.Context) (*auth.Bundle, error) {
	b, err := s.credentials().Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading credentials")
	}
	return b, nil
}

// Profile returns the user of the session, fetching it when it is not cached.
// Concurrent requests of a session share one fetch; a caller giving up does not cancel it.
// A nil profile and no error means the session has no token.
func (s *Session) Profile(ctx context.Context) (*user.Profile, error) {
	if p, ok := s.provider.profiles.Get(s.key()); ok {
		return p, nil
	}

	b, err := s.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	if !b.HasAccess() {
		return nil, nil
	}

	key := s.key()
	gen := s.provider.generation(key)
	ch := s.provider.fetches.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), profileFetchTimeout)
		defer cancel()
		p, err := s.Client().Me(fctx)
		if err != nil {
			return nil, err
		}
		if !s.provider.cache(key, gen, p) {
			return nil, errSessionChanged
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if errors.Is(res.Err, errSessionChanged) {
			// logged in or out meanwhile: fetch for the current credentials
			return s.Profile(ctx)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*user.Profile), nil
	}
}

// State is what the guards see of the session. A cancelled profile fetch is reported as loading;
// an ended session is returned as apiclient.ErrSessionExpired.
func (s *Session) State(ctx context.Context) (guard.Session, error) {
	b, err := s.Bundle(ctx)
	if err != nil {
		return guard.Session{}, err
	}
	state := guard.Session{HasToken: b.HasAccess()}
	if !state.HasToken {
		return state, nil
	}

	p, err := s.Profile(ctx)
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		// the refresh failed and the credentials are gone
		return guard.Session{}, err
	case apiclient.IsCanceled(err), errors.Is(err, context.DeadlineExceeded):
		return state, nil
	case err != nil:
		state.ProfileError = err
	default:
		state.Profile = p
		state.HasToken = p != nil
	}
	return state, nil
}

// Login validates the form, exchanges the credentials for a bundle and loads the new profile.
func (s *Session) Login(ctx context.Context, form *auth.LoginForm) (*user.Profile, error) {
	if err := form.Validate(s.provider.validate); err != nil {
		return nil, err
	}

	b, err := s.provider.pool.Anonymous(s.Tenant).Login(ctx, form.Email, form.Password)
	if err != nil {
		return nil, err
	}
	if !b.HasAccess() {
		return nil, errors.New("login response without access token")
	}

	s.invalidate()
	if err = s.credentials().Save(ctx, b); err != nil {
		return nil, errors.Wrap(err, "saving credentials")
	}
	s.provider.logger.Info("login", map[string]interface{}{"tenant": s.Tenant, "email": form.Email})

	return s.Profile(ctx)
}

// Logout clears the credentials and the cached profile.
func (s *Session) Logout(ctx context.Context) error {
	s.invalidate()
	s.provider.pool.Forget(s.ID)
	if err := s.credentials().Clear(context.WithoutCancel(ctx)); err != nil {
		return errors.Wrap(err, "clearing credentials")
	}
	return nil
}

// Activate sets the password of an invited account, then ends the current session.
// It returns the confirmation message of the API.
func (s *Session) Activate(ctx context.Context, form *auth.ActivationForm) (string, error) {
	if err := form.Validate(s.provider.validate); err != nil {
		return "", err
	}

	msg, err := s.provider.pool.Anonymous(s.Tenant).Activate(ctx, form.UID, form.Token, form.Password)
	if err != nil {
		return "", err
	}
	if err = s.Logout(ctx); err != nil {
		return "", err
	}
	return msg, nil
}

func (s *Session) invalidate() {
	s.provider.invalidate(s.key())
}
