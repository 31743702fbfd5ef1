package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"

	"github.com/huavcjj/mailgate/internal/apperr"
	connection_domain "github.com/huavcjj/mailgate/internal/domain/connection"
)

type connectionRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ connection_domain.ConnectionRepo = (*connectionRepo)(nil)

// NewConnectionRepo wraps db. A nil db yields a repo in degraded mode: reads
// return nothing and writes fail with apperr.ErrStorageUnavailable.
func NewConnectionRepo(db *sqlx.DB) connection_domain.ConnectionRepo {
	return &connectionRepo{
		db:  db,
		now: time.Now,
	}
}

type connectionRow struct {
	UserID         string         `db:"user_id"`
	Connected      bool           `db:"connected"`
	Email          sql.NullString `db:"email"`
	AccessToken    sql.NullString `db:"access_token"`
	RefreshToken   sql.NullString `db:"refresh_token"`
	TokenExpiresAt sql.NullInt64  `db:"token_expires_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

func (r *connectionRepo) Ready() bool {
	return r.db != nil
}

func (r *connectionRepo) EnsureRecord(ctx context.Context, userID string) error {
	if !r.Ready() {
		return apperr.ErrStorageUnavailable
	}

	query := insertIgnore(r.db.DriverName()) +
		` yahoo_connections (user_id, connected, updated_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, userID, false, r.now().Unix()); err != nil {
		return fmt.Errorf("failed to ensure connection record: %w", err)
	}

	return nil
}

func (r *connectionRepo) Save(ctx context.Context, userID string, token *oauth2.Token, emailGuess string) error {
	if !r.Ready() {
		return apperr.ErrStorageUnavailable
	}
	if token == nil || token.AccessToken == "" {
		return apperr.Validation("token response has no access_token")
	}

	if err := r.EnsureRecord(ctx, userID); err != nil {
		return err
	}

	now := r.now()

	var refreshToken, email sql.NullString
	var expiresAt sql.NullInt64

	// Yahoo does not always reissue a refresh token; COALESCE keeps the old one.
	if token.RefreshToken != "" {
		refreshToken = sql.NullString{String: token.RefreshToken, Valid: true}
	}
	if emailGuess != "" {
		email = sql.NullString{String: emailGuess, Valid: true}
	}
	switch {
	case !token.Expiry.IsZero():
		expiresAt = sql.NullInt64{Int64: token.Expiry.Unix(), Valid: true}
	case token.ExpiresIn > 0:
		expiresAt = sql.NullInt64{Int64: now.Add(time.Duration(token.ExpiresIn) * time.Second).Unix(), Valid: true}
	}

	const query = `
		UPDATE yahoo_connections SET
			connected = ?,
			access_token = ?,
			refresh_token = COALESCE(?, refresh_token),
			token_expires_at = ?,
			email = COALESCE(?, email),
			updated_at = ?
		WHERE user_id = ?`

	_, err := r.db.ExecContext(ctx, query,
		true,
		token.AccessToken,
		refreshToken,
		expiresAt,
		email,
		now.Unix(),
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to save yahoo tokens: %w", err)
	}

	return nil
}

func (r *connectionRepo) Load(ctx context.Context, userID string) (*connection_domain.Connection, error) {
	if !r.Ready() {
		return nil, nil
	}

	const query = `
		SELECT user_id, connected, email, access_token, refresh_token, token_expires_at, updated_at
		FROM yahoo_connections
		WHERE user_id = ?`

	var row connectionRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}

	return r.rowToDomain(row), nil
}

func (r *connectionRepo) Clear(ctx context.Context, userID string) error {
	if !r.Ready() {
		return apperr.ErrStorageUnavailable
	}

	const query = `
		UPDATE yahoo_connections SET
			connected = ?,
			email = NULL,
			access_token = NULL,
			refresh_token = NULL,
			token_expires_at = NULL,
			updated_at = ?
		WHERE user_id = ?`

	if _, err := r.db.ExecContext(ctx, query, false, r.now().Unix(), userID); err != nil {
		return fmt.Errorf("failed to clear connection: %w", err)
	}

	return nil
}

func (r *connectionRepo) rowToDomain(row connectionRow) *connection_domain.Connection {
	conn := &connection_domain.Connection{
		UserID:    row.UserID,
		Connected: row.Connected,
		UpdatedAt: time.Unix(row.UpdatedAt, 0),
	}

	if row.Email.Valid {
		email := row.Email.String
		conn.Email = &email
	}
	if row.AccessToken.Valid {
		token := row.AccessToken.String
		conn.AccessToken = &token
	}
	if row.RefreshToken.Valid {
		token := row.RefreshToken.String
		conn.RefreshToken = &token
	}
	if row.TokenExpiresAt.Valid {
		expiresAt := time.Unix(row.TokenExpiresAt.Int64, 0)
		conn.TokenExpiresAt = &expiresAt
	}

	return conn
}

func insertIgnore(driver string) string {
	if driver == "mysql" {
		return "INSERT IGNORE INTO"
	}
	return "INSERT OR IGNORE INTO"
}
