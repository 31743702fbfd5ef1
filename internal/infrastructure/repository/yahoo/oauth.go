package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/huavcjj/mailgate/internal/apperr"
	connection_domain "github.com/huavcjj/mailgate/internal/domain/connection"
)

var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://api.login.yahoo.com/oauth2/request_auth",
	TokenURL: "https://api.login.yahoo.com/oauth2/get_token",
	// Client credentials travel in the Basic auth header, never in the body.
	AuthStyle: oauth2.AuthStyleInHeader,
}

const UserInfoURL = "https://api.login.yahoo.com/openid/v1/userinfo"

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint and UserInfoURL default to Yahoo's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
}

type oauthRepo struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

var _ connection_domain.OAuthRepo = (*oauthRepo)(nil)

func NewOAuthRepo(cfg OAuthConfig) connection_domain.OAuthRepo {
	endpoint := cfg.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = UserInfoURL
	}

	return &oauthRepo{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  cfg.HTTPClient,
	}
}

var errNotConfigured = apperr.Config("YAHOO_CLIENT_ID and YAHOO_CLIENT_SECRET must be set")

func (r *oauthRepo) Configured() bool {
	return r.config.ClientID != "" && r.config.ClientSecret != ""
}

func (r *oauthRepo) AuthURL(state, loginHint string) (string, error) {
	if !r.Configured() {
		return "", errNotConfigured
	}
	if r.config.RedirectURL == "" {
		return "", apperr.Config("YAHOO_REDIRECT_URI or PUBLIC_BASE_URL must be set")
	}

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("language", "en-us")}
	if loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", loginHint))
	}

	return r.config.AuthCodeURL(state, opts...), nil
}

func (r *oauthRepo) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !r.Configured() {
		return nil, errNotConfigured
	}

	token, err := r.config.Exchange(r.withClient(ctx), code)
	if err != nil {
		return nil, upstreamError("token exchange failed", err)
	}
	return token, nil
}

// Refresh exchanges a refresh token for a new access token. Any rejection by
// the token endpoint is an authorization failure; nothing is retried.
func (r *oauthRepo) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if !r.Configured() {
		return nil, errNotConfigured
	}

	tokenSource := r.config.TokenSource(r.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := tokenSource.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			e := apperr.Unauthorized("token refresh failed", "The refresh token was rejected. Reconnect the account through /auth.")
			if retrieveErr.Response != nil {
				e.UpstreamStatus = retrieveErr.Response.StatusCode
			}
			e.UpstreamBody = string(retrieveErr.Body)
			e.Err = err
			return nil, e
		}
		return nil, upstreamError("token refresh failed", err)
	}

	return token, nil
}

// LookupEmail reads the email claim of the id_token and falls back to the
// userinfo endpoint. Failures are logged and tolerated.
func (r *oauthRepo) LookupEmail(ctx context.Context, token *oauth2.Token) string {
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		email, err := emailFromIDToken(idToken)
		if err == nil && email != "" {
			return email
		}
		if err != nil {
			slog.Warn("failed to read id_token", "error", err)
		}
	}

	email, err := r.fetchUserInfoEmail(ctx, token)
	if err != nil {
		slog.Warn("failed to fetch yahoo userinfo", "error", err)
		return ""
	}
	return email
}

func (r *oauthRepo) fetchUserInfoEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userInfoURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.config.Client(r.withClient(ctx), token).Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return info.Email, nil
}

func (r *oauthRepo) withClient(ctx context.Context) context.Context {
	if r.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}
	return ctx
}

// emailFromIDToken reads claims without verifying the signature; the token
// came straight from the token endpoint over TLS.
func emailFromIDToken(idToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("failed to parse id_token: %w", err)
	}
	email, _ := claims["email"].(string)
	return email, nil
}

func upstreamError(message string, err error) error {
	e := &apperr.Error{Kind: apperr.KindUpstream, Message: message, Err: err}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			e.UpstreamStatus = retrieveErr.Response.StatusCode
		}
		e.UpstreamBody = string(retrieveErr.Body)
	}
	return e
}
