package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/vims/core/auth"
	"github.com/trezcool/vims/core/user"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type activationRequest struct {
	Password string `json:"password"`
}

// DetailResponse is the `{detail}` body of action endpoints.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// Login exchanges credentials for a bundle. It is sent without a bearer token and never refreshes.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Bundle, error) {
	var b auth.Bundle
	err := c.doAnonymous(ctx, http.MethodPost, "/accounts/login/", loginRequest{Email: email, Password: password}, &b)
	return b, err
}

// Me fetches the profile of the session's user.
func (c *Client) Me(ctx context.Context) (*user.Profile, error) {
	var p user.Profile
	if err := c.do(ctx, http.MethodGet, "/accounts/my/", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Activate sets the password of an invited account.
func (c *Client) Activate(ctx context.Context, uid, token, password string) (string, error) {
	var res DetailResponse
	path := "/accounts/activate/" + url.PathEscape(uid) + "/" + url.PathEscape(token) + "/"
	err := c.doAnonymous(ctx, http.MethodPost, path, activationRequest{Password: password}, &res)
	return res.Detail, err
}
