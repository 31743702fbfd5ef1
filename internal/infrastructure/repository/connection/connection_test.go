package connection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/huavcjj/mailgate/internal/apperr"
)

func newTestRepo(t *testing.T, now time.Time) *connectionRepo {
	t.Helper()

	db, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewConnectionRepo(db).(*connectionRepo)
	repo.now = func() time.Time { return now }
	return repo
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo := newTestRepo(t, time.Now())
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, repo.db))

	var versions int
	require.NoError(t, repo.db.GetContext(ctx, &versions, `SELECT COUNT(*) FROM schema_version`))
	assert.Equal(t, len(migrations), versions)
}

func TestEnsureRecordIsIdempotent(t *testing.T) {
	repo := newTestRepo(t, time.Now())
	ctx := context.Background()

	require.NoError(t, repo.EnsureRecord(ctx, "u1"))
	require.NoError(t, repo.EnsureRecord(ctx, "u1"))

	conn, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.False(t, conn.Connected)
	assert.Nil(t, conn.AccessToken)
}

func TestSaveAndLoad(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	token := &oauth2.Token{AccessToken: "at-1", RefreshToken: "rt-1", Expiry: now.Add(time.Hour)}
	require.NoError(t, repo.Save(ctx, "u1", token, "a@yahoo.com"))

	conn, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.True(t, conn.Connected)
	assert.Equal(t, "a@yahoo.com", *conn.Email)
	assert.Equal(t, "at-1", *conn.AccessToken)
	assert.Equal(t, "rt-1", *conn.RefreshToken)
	assert.Equal(t, now.Add(time.Hour).Unix(), conn.TokenExpiresAt.Unix())
	assert.Equal(t, now.Unix(), conn.UpdatedAt.Unix())
}

func TestSaveKeepsRefreshTokenAndEmailWhenAbsent(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "u1", &oauth2.Token{AccessToken: "at-1", RefreshToken: "rt-1"}, "a@yahoo.com"))
	require.NoError(t, repo.Save(ctx, "u1", &oauth2.Token{AccessToken: "at-2", ExpiresIn: 3600}, ""))

	conn, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", *conn.AccessToken)
	assert.Equal(t, "rt-1", *conn.RefreshToken)
	assert.Equal(t, "a@yahoo.com", *conn.Email)
	assert.Equal(t, now.Add(time.Hour).Unix(), conn.TokenExpiresAt.Unix())
}

func TestSaveRejectsEmptyAccessToken(t *testing.T) {
	repo := newTestRepo(t, time.Now())

	err := repo.Save(context.Background(), "u1", &oauth2.Token{RefreshToken: "rt"}, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestClearKeepsRow(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	repo := newTestRepo(t, now)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "u1", &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: now.Add(time.Hour)}, "a@yahoo.com"))
	require.NoError(t, repo.Clear(ctx, "u1"))

	conn, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, conn, "row must survive a clear")
	assert.False(t, conn.Connected)
	assert.Nil(t, conn.Email)
	assert.Nil(t, conn.AccessToken)
	assert.Nil(t, conn.RefreshToken)
	assert.Nil(t, conn.TokenExpiresAt)

	var rows int
	require.NoError(t, repo.db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM yahoo_connections WHERE user_id = ?`, "u1"))
	assert.Equal(t, 1, rows)

	require.NoError(t, repo.Save(ctx, "u1", &oauth2.Token{AccessToken: "at-2"}, ""))

	conn, err = repo.Load(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, conn.Connected)
	assert.Equal(t, "at-2", *conn.AccessToken)
	assert.Nil(t, conn.RefreshToken)

	require.NoError(t, repo.db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM yahoo_connections WHERE user_id = ?`, "u1"))
	assert.Equal(t, 1, rows)
}

func TestLoadUnknownUser(t *testing.T) {
	repo := newTestRepo(t, time.Now())

	conn, err := repo.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestDegradedMode(t *testing.T) {
	repo := NewConnectionRepo(nil)
	ctx := context.Background()

	assert.False(t, repo.Ready())

	conn, err := repo.Load(ctx, "u1")
	assert.NoError(t, err)
	assert.Nil(t, conn)

	assert.ErrorIs(t, repo.Save(ctx, "u1", &oauth2.Token{AccessToken: "at"}, ""), apperr.ErrStorageUnavailable)
	assert.ErrorIs(t, repo.Clear(ctx, "u1"), apperr.ErrStorageUnavailable)
	assert.ErrorIs(t, repo.EnsureRecord(ctx, "u1"), apperr.ErrStorageUnavailable)
}

func TestInsertIgnore(t *testing.T) {
	assert.Equal(t, "INSERT IGNORE INTO", insertIgnore("mysql"))
	assert.Equal(t, "INSERT OR IGNORE INTO", insertIgnore("sqlite"))
}
