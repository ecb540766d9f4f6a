package apiclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const refreshPath = "/accounts/refresh_token/"

type waiter struct {
	ctx  context.Context
	call *call
	done chan error
}

// refreshGate lets one refresh run per session. Calls failing with an expired token while a
// refresh runs wait in arrival order and are replayed by the refreshing call once it is over.
type refreshGate struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []*waiter
}

func newRefreshGate() *refreshGate {
	return &refreshGate{}
}

// recover handles a first failure of cl with an expired token.
func (g *refreshGate) recover(ctx context.Context, c *Client, cl *call) error {
	cl.retries++

	g.mu.Lock()
	if g.inFlight {
		w := &waiter{ctx: ctx, call: cl, done: make(chan error, 1)}
		g.waiters = append(g.waiters, w)
		g.mu.Unlock()
		select {
		case err := <-w.done:
			return err
		case <-ctx.Done():
			g.leave(w)
			return transportError(ctx, ctx.Err())
		}
	}

	if b, err := c.creds.Load(ctx); err == nil {
		switch {
		case !b.HasAccess():
			// a failed refresh already ended the session
			g.mu.Unlock()
			return &SessionExpiredError{Message: MsgSessionExpired}
		case b.Access != cl.token:
			// another call already refreshed the token this one was sent with
			g.mu.Unlock()
			return c.execute(ctx, cl)
		}
	}
	g.inFlight = true
	g.mu.Unlock()

	refreshErr := c.refresh(ctx)
	err := refreshErr
	if err == nil {
		err = c.execute(ctx, cl)
	}
	g.drain(c, refreshErr)
	return err
}

// leave drops a waiter that gave up. A waiter already handed to drain is left to it.
func (g *refreshGate) leave(w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, other := range g.waiters {
		if other == w {
			g.waiters = append(g.waiters[:i:i], g.waiters[i+1:]...)
			return
		}
	}
}

// drain replays (or rejects) the waiters one by one, then opens the gate.
func (g *refreshGate) drain(c *Client, refreshErr error) {
	for {
		g.mu.Lock()
		if len(g.waiters) == 0 {
			g.inFlight = false
			g.mu.Unlock()
			return
		}
		w := g.waiters[0]
		g.waiters = g.waiters[1:]
		g.mu.Unlock()

		if refreshErr != nil {
			w.done <- refreshErr
			continue
		}
		w.done <- c.execute(w.ctx, w.call)
	}
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// refresh exchanges the refresh token and persists the rotated bundle.
// Any failure clears the credentials and ends the session.
func (c *Client) refresh(ctx context.Context) error {
	b, err := c.creds.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "loading credentials")
	}
	if !b.HasRefresh() {
		c.clearCredentials(ctx)
		c.observer.ObserveRefresh(c.tenant, ErrSessionExpired)
		return &SessionExpiredError{Message: MsgSessionExpired}
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var out refreshResponse
	err = c.doAnonymous(rctx, http.MethodPost, refreshPath, refreshRequest{Refresh: b.Refresh}, &out)
	if err == nil && out.Access == "" {
		err = &Error{Kind: KindUnknown, Status: http.StatusOK, Message: MsgUnexpected, Err: errors.New("refresh response without access token")}
	}
	if err == nil {
		err = errors.Wrap(c.creds.Save(context.WithoutCancel(ctx), b.Rotate(out.Access, out.Refresh)), "saving credentials")
	}
	c.observer.ObserveRefresh(c.tenant, err)
	if err == nil {
		return nil
	}

	c.clearCredentials(ctx)
	msg := MsgConnectionFailed
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		msg = MsgSessionExpired
	}
	return &SessionExpiredError{Message: msg, Err: err}
}
