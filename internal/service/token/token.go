package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/huavcjj/mailgate/internal/apperr"
	connection_domain "github.com/huavcjj/mailgate/internal/domain/connection"
	"github.com/huavcjj/mailgate/internal/logging"
)

// RefreshMargin is how long before expiry a token is already treated as stale.
const RefreshMargin = 60 * time.Second

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// RefreshObserver is told the outcome ("success" or "error") of every refresh.
type RefreshObserver interface {
	ObserveRefresh(result string)
}

// Tokens is a usable credential set for one user.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Email        string
	ExpiresAt    *time.Time
}

type Manager struct {
	repo      connection_domain.ConnectionRepo
	refresher Refresher
	observer  RefreshObserver
	now       func() time.Time
}

func NewManager(repo connection_domain.ConnectionRepo, refresher Refresher, observer RefreshObserver) *Manager {
	return &Manager{
		repo:      repo,
		refresher: refresher,
		observer:  observer,
		now:       time.Now,
	}
}

// GetValid returns the stored tokens, refreshing them first when they are
// stale. Concurrent calls for one user may both refresh; the last write wins.
func (m *Manager) GetValid(ctx context.Context, userID string) (*Tokens, error) {
	conn, err := m.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if conn == nil || conn.AccessToken == nil || *conn.AccessToken == "" {
		return nil, apperr.ErrNotConnected
	}

	if !m.isStale(conn) {
		return tokensFrom(conn), nil
	}

	if conn.RefreshToken == nil || *conn.RefreshToken == "" {
		return nil, apperr.ErrReauthRequired
	}

	slog.Debug("refreshing yahoo access token", "user_id", userID, "refresh_token", logging.SanitizeToken(*conn.RefreshToken))

	fresh, err := m.refresher.Refresh(ctx, *conn.RefreshToken)
	if err != nil {
		m.observe("error")
		slog.Warn("yahoo token refresh failed", "user_id", userID, logging.Err(err))
		return nil, err
	}

	merged := &oauth2.Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		TokenType:    fresh.TokenType,
		Expiry:       fresh.Expiry,
		ExpiresIn:    fresh.ExpiresIn,
	}
	if merged.RefreshToken == "" {
		merged.RefreshToken = *conn.RefreshToken
	}

	if err := m.repo.Save(ctx, userID, merged, ""); err != nil {
		m.observe("error")
		return nil, fmt.Errorf("failed to save refreshed tokens: %w", err)
	}
	m.observe("success")

	reloaded, err := m.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload tokens: %w", err)
	}
	if reloaded == nil || reloaded.AccessToken == nil {
		return nil, apperr.ErrNotConnected
	}

	return tokensFrom(reloaded), nil
}

// isStale treats a missing expiry as already expired.
func (m *Manager) isStale(conn *connection_domain.Connection) bool {
	if conn.TokenExpiresAt == nil {
		return true
	}
	return m.now().After(conn.TokenExpiresAt.Add(-RefreshMargin))
}

func (m *Manager) observe(result string) {
	if m.observer != nil {
		m.observer.ObserveRefresh(result)
	}
}

func tokensFrom(conn *connection_domain.Connection) *Tokens {
	t := &Tokens{
		AccessToken: *conn.AccessToken,
		ExpiresAt:   conn.TokenExpiresAt,
	}
	if conn.RefreshToken != nil {
		t.RefreshToken = *conn.RefreshToken
	}
	if conn.Email != nil {
		t.Email = *conn.Email
	}
	return t
}
