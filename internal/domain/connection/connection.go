package connection

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Connection is the per-user Yahoo Mail link. Rows are cleared on disconnect,
// never deleted.
type Connection struct {
	UserID         string
	Connected      bool
	Email          *string
	AccessToken    *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	UpdatedAt      time.Time
}

type ConnectionRepo interface {
	// Ready reports whether the backing store initialised.
	Ready() bool
	EnsureRecord(ctx context.Context, userID string) error
	Save(ctx context.Context, userID string, token *oauth2.Token, emailGuess string) error
	// Load returns nil, nil when the user has no row or the store is not ready.
	Load(ctx context.Context, userID string) (*Connection, error)
	Clear(ctx context.Context, userID string) error
}

// OAuthRepo is the provider side of the link.
type OAuthRepo interface {
	Configured() bool
	AuthURL(state, loginHint string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	// LookupEmail never fails; it returns "" when no address can be found.
	LookupEmail(ctx context.Context, token *oauth2.Token) string
}
