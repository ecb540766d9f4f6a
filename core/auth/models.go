// Package auth holds the per-session credentials (the AuthBundle) and the forms that obtain them.
package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// TenantInfo is the tenant metadata returned with the login tokens.
type TenantInfo struct {
	Name      string            `json:"name,omitempty"`
	ShortName string            `json:"short_name,omitempty"`
	Logo      string            `json:"logo,omitempty"`
	Theme     map[string]string `json:"theme,omitempty"`
}

// Bundle is the unit of credentials of a session. It is replaced as a whole on login and refresh.
type Bundle struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	Tenant  *TenantInfo `json:"tenant,omitempty"`
}

func (b *Bundle) HasAccess() bool  { return b != nil && b.Access != "" }
func (b *Bundle) HasRefresh() bool { return b != nil && b.Refresh != "" }

// Rotate returns the bundle following a refresh: the new access token, the new refresh token
// when one was issued (else the current one) and the current tenant.
func (b Bundle) Rotate(access, refresh string) Bundle {
	if refresh == "" {
		refresh = b.Refresh
	}
	return Bundle{Access: access, Refresh: refresh, Tenant: b.Tenant}
}

// Claims is the subset of the API's JWT claims the dashboard reads.
type Claims struct {
	jwt.StandardClaims
	TokenType string `json:"token_type,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// PeekClaims decodes a token's claims without verifying its signature.
// The dashboard never owns the signing key; claims are only used for expiries and logs.
func PeekClaims(token string) (*Claims, error) {
	claims := new(Claims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	return claims, nil
}

// ExpiresAt is the latest expiry among the bundle's tokens; zero when unknown.
func (b Bundle) ExpiresAt() time.Time {
	var latest int64
	for _, tok := range []string{b.Access, b.Refresh} {
		if tok == "" {
			continue
		}
		if claims, err := PeekClaims(tok); err == nil && claims.ExpiresAt > latest {
			latest = claims.ExpiresAt
		}
	}
	if latest == 0 {
		return time.Time{}
	}
	return time.Unix(latest, 0).UTC()
}

// TTL is how long the bundle should be kept: until its latest token expiry, capped at max.
func (b Bundle) TTL(now time.Time, max time.Duration) time.Duration {
	exp := b.ExpiresAt()
	if exp.IsZero() {
		return max
	}
	ttl := exp.Sub(now)
	if ttl <= 0 {
		return time.Second
	}
	if max > 0 && ttl > max {
		return max
	}
	return ttl
}

// EncodeBundle serializes the bundle the way every Store persists it.
func EncodeBundle(b Bundle) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, errors.Wrap(err, "encoding bundle")
	}
	return data, nil
}

// DecodeBundle parses a persisted bundle. Errors mean corrupt data.
func DecodeBundle(data []byte) (*Bundle, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrCorruptBundle
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(ErrCorruptBundle, err.Error())
	}
	return &b, nil
}

var ErrCorruptBundle = errors.New("corrupt credentials")

// Store persists one Bundle per session.
// Get returns (nil, nil) when the session has no credentials; corrupt entries are
// cleared and reported as absent.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Bundle, error)
	Set(ctx context.Context, sessionID string, b Bundle) error
	Clear(ctx context.Context, sessionID string) error
}

// SessionCredentials binds a Store to one session.
type SessionCredentials struct {
	Store     Store
	SessionID string
}

func (c SessionCredentials) Load(ctx context.Context) (*Bundle, error) {
	return c.Store.Get(ctx, c.SessionID)
}

func (c SessionCredentials) Save(ctx context.Context, b Bundle) error {
	return c.Store.Set(ctx, c.SessionID, b)
}

func (c SessionCredentials) Clear(ctx context.Context) error {
	return c.Store.Clear(ctx, c.SessionID)
}
