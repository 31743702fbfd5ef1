package connect

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/huavcjj/mailgate/internal/apperr"
	connection_domain "github.com/huavcjj/mailgate/internal/domain/connection"
	"github.com/huavcjj/mailgate/internal/logging"
	"github.com/huavcjj/mailgate/internal/service/statetoken"
)

const ModeApp = "app"

type Service struct {
	oauth  connection_domain.OAuthRepo
	conns  connection_domain.ConnectionRepo
	states *statetoken.Codec
}

func NewService(oauth connection_domain.OAuthRepo, conns connection_domain.ConnectionRepo, states *statetoken.Codec) *Service {
	return &Service{
		oauth:  oauth,
		conns:  conns,
		states: states,
	}
}

type AuthRequest struct {
	UserID string
	Mode   string
	Email  string
}

// Completion describes a finished OAuth callback.
type Completion struct {
	UserID string
	Mode   string
	Email  string
}

type Status struct {
	Connected bool    `json:"connected"`
	Email     *string `json:"email"`
	// TokenExpiresAt is in unix seconds.
	TokenExpiresAt *int64 `json:"token_expires_at"`
}

// StartAuth signs a state for the user and returns the provider's authorize
// URL. Email, when given, is passed as a login hint.
func (s *Service) StartAuth(req AuthRequest) (string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", apperr.Validation("user_id is required")
	}
	if !s.oauth.Configured() {
		return "", apperr.Config("YAHOO_CLIENT_ID and YAHOO_CLIENT_SECRET must be set")
	}

	state, err := s.states.Sign(statetoken.Payload{
		UserID: req.UserID,
		Mode:   req.Mode,
		Email:  req.Email,
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to sign state", err)
	}

	authURL, err := s.oauth.AuthURL(state, req.Email)
	if err != nil {
		return "", err
	}

	slog.Info("yahoo auth started", "user_id", req.UserID, "mode", req.Mode)
	return authURL, nil
}

// CompleteAuth verifies the state, exchanges the code and persists the
// tokens. A failed email lookup falls back to the address carried in the
// state.
func (s *Service) CompleteAuth(ctx context.Context, code, state string) (*Completion, error) {
	if code == "" || state == "" {
		return nil, apperr.Validation("missing code or state")
	}

	payload, err := s.states.Verify(state)
	if err != nil {
		if errors.Is(err, statetoken.ErrInvalidState) {
			return nil, apperr.Validation("invalid or expired state")
		}
		return nil, err
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Error("yahoo code exchange failed", "user_id", payload.UserID, logging.Err(err))
		return nil, err
	}

	email := s.oauth.LookupEmail(ctx, token)
	if email == "" {
		email = payload.Email
	}

	if err := s.conns.Save(ctx, payload.UserID, token, email); err != nil {
		return nil, err
	}

	slog.Info("yahoo auth completed",
		"user_id", payload.UserID,
		"email_known", email != "",
		"access_token", logging.SanitizeToken(token.AccessToken),
	)

	return &Completion{UserID: payload.UserID, Mode: payload.Mode, Email: email}, nil
}

func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user_id is required")
	}

	conn, err := s.conns.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &Status{}, nil
	}

	status := &Status{
		Connected: conn.Connected && conn.AccessToken != nil,
		Email:     conn.Email,
	}
	if conn.TokenExpiresAt != nil {
		expiresAt := conn.TokenExpiresAt.Unix()
		status.TokenExpiresAt = &expiresAt
	}
	return status, nil
}

func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Validation("user_id is required")
	}

	if err := s.conns.Clear(ctx, userID); err != nil {
		return err
	}

	slog.Info("yahoo account disconnected", "user_id", userID)
	return nil
}
