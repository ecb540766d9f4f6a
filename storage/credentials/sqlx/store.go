package sqlxstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/vims/core/auth"
)

const (
	selectQuery = `SELECT session_id, bundle, tenant, expires_at FROM session_credentials WHERE session_id = $1`
	upsertQuery = `INSERT INTO session_credentials (session_id, bundle, tenant, expires_at, updated_at) VALUES ($1, $2, $3, $4, $5) ` +
		`ON CONFLICT (session_id) DO UPDATE SET bundle = EXCLUDED.bundle, tenant = EXCLUDED.tenant, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`
	deleteQuery = `DELETE FROM session_credentials WHERE session_id = $1`
	purgeQuery  = `DELETE FROM session_credentials WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

type credentialRow struct {
	SessionID string      `db:"session_id"`
	Bundle    string      `db:"bundle"`
	Tenant    null.String `db:"tenant"`
	ExpiresAt null.Time   `db:"expires_at"`
}

type store struct {
	db     *sqlx.DB
	maxTTL time.Duration
	now    func() time.Time
}

var _ auth.Store = (*store)(nil)

// NewStore persists bundles in the session_credentials table (see the migrations).
func NewStore(db *sql.DB, maxTTL time.Duration) *store {
	return &store{
		db:     sqlx.NewDb(db, "postgres"),
		maxTTL: maxTTL,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *store) Get(ctx context.Context, sessionID string) (*auth.Bundle, error) {
	var row credentialRow
	if err := s.db.GetContext(ctx, &row, selectQuery, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "selecting credentials")
	}

	if row.ExpiresAt.Valid && !s.now().Before(row.ExpiresAt.Time) {
		return nil, s.Clear(ctx, sessionID)
	}

	b, err := auth.DecodeBundle([]byte(row.Bundle))
	if err != nil {
		return nil, s.Clear(ctx, sessionID)
	}
	return b, nil
}

func (s *store) Set(ctx context.Context, sessionID string, b auth.Bundle) error {
	data, err := auth.EncodeBundle(b)
	if err != nil {
		return err
	}

	now := s.now()
	var tenant null.String
	if b.Tenant != nil && b.Tenant.Name != "" {
		tenant = null.StringFrom(b.Tenant.Name)
	}
	var expiresAt null.Time
	if ttl := b.TTL(now, s.maxTTL); ttl > 0 {
		expiresAt = null.TimeFrom(now.Add(ttl))
	}

	if _, err = s.db.ExecContext(ctx, upsertQuery, sessionID, string(data), tenant, expiresAt, now); err != nil {
		return errors.Wrap(err, "saving credentials")
	}
	return nil
}

func (s *store) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery, sessionID); err != nil {
		return errors.Wrap(err, "deleting credentials")
	}
	return nil
}

// PurgeExpired deletes every expired row and returns how many were removed.
func (s *store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, purgeQuery, s.now())
	if err != nil {
		return 0, errors.Wrap(err, "purging credentials")
	}
	return res.RowsAffected()
}
