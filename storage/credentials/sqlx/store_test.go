package sqlxstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vims/core/auth"
)

var cols = []string{"session_id", "bundle", "tenant", "expires_at"}

func setupStore(t *testing.T) (*store, sqlmock.Sqlmock, time.Time) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewStore(db, time.Hour)
	s.now = func() time.Time { return now }
	return s, mock, now
}

func TestStore_Get(t *testing.T) {
	ctx := context.Background()
	s, mock, now := setupStore(t)

	mock.ExpectQuery(selectQuery).WithArgs("sid").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("sid", `{"access":"a","refresh":"r","tenant":{"name":"Acme"}}`, "Acme", now.Add(time.Minute)))

	b, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, auth.Bundle{Access: "a", Refresh: "r", Tenant: &auth.TenantInfo{Name: "Acme"}}, *b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_absent(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := setupStore(t)

	mock.ExpectQuery(selectQuery).WithArgs("sid").WillReturnRows(sqlmock.NewRows(cols))

	b, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_corruptIsCleared(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := setupStore(t)

	mock.ExpectQuery(selectQuery).WithArgs("sid").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("sid", "{oops", nil, nil))
	mock.ExpectExec(deleteQuery).WithArgs("sid").WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_expiredIsCleared(t *testing.T) {
	ctx := context.Background()
	s, mock, now := setupStore(t)

	mock.ExpectQuery(selectQuery).WithArgs("sid").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("sid", `{"access":"a"}`, nil, now.Add(-time.Second)))
	mock.ExpectExec(deleteQuery).WithArgs("sid").WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_dbError(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := setupStore(t)

	mock.ExpectQuery(selectQuery).WithArgs("sid").WillReturnError(errors.New("connection reset"))

	_, err := s.Get(ctx, "sid")
	assert.EqualError(t, err, "selecting credentials: connection reset")
}

func TestStore_Set(t *testing.T) {
	ctx := context.Background()
	s, mock, now := setupStore(t)

	mock.ExpectExec(upsertQuery).
		WithArgs("sid", `{"access":"a","refresh":"r","tenant":{"name":"Acme"}}`, "Acme", now.Add(time.Hour), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Set(ctx, "sid", auth.Bundle{Access: "a", Refresh: "r", Tenant: &auth.TenantInfo{Name: "Acme"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := setupStore(t)

	mock.ExpectExec(deleteQuery).WithArgs("sid").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Clear(ctx, "sid"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	s, mock, now := setupStore(t)

	mock.ExpectExec(purgeQuery).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
