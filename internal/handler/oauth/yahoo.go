package oauth

import (
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/huavcjj/mailgate/internal/apperr"
	"github.com/huavcjj/mailgate/internal/handler/respond"
	"github.com/huavcjj/mailgate/internal/service/connect"
)

const (
	htmlError = `<!doctype html><html><head><meta charset="utf-8"><title>Yahoo Mail</title></head>` +
		`<body><h1>Connection failed</h1><p>%s</p></body></html>`
	htmlConnected = `<!doctype html><html><head><meta charset="utf-8"><title>Yahoo Mail</title></head>` +
		`<body><h1>Yahoo Mail connected</h1><p>%s</p><p>You can close this window.</p></body></html>`
)

type YahooOAuthHandler struct {
	connectService *connect.Service
	deepLink       string
}

func NewYahooOAuthHandler(connectService *connect.Service, deepLink string) *YahooOAuthHandler {
	return &YahooOAuthHandler{
		connectService: connectService,
		deepLink:       deepLink,
	}
}

// HandleAuth forwards to /auth-url with the same parameters.
func (h *YahooOAuthHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("user_id") == "" {
		respond.Error(w, apperr.Validation("user_id is required"))
		return
	}

	q := r.URL.Query()
	q.Del("format")
	http.Redirect(w, r, "/auth-url?"+q.Encode(), http.StatusFound)
}

func (h *YahooOAuthHandler) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	authURL, err := h.connectService.StartAuth(connect.AuthRequest{
		UserID: q.Get("user_id"),
		Mode:   q.Get("mode"),
		Email:  q.Get("email"),
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	if q.Get("format") == "json" {
		respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "url": authURL})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *YahooOAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		slog.Warn("yahoo authorization denied", "error", providerErr, "description", q.Get("error_description"))
		writeHTML(w, http.StatusBadRequest, fmt.Sprintf(htmlError, html.EscapeString("Authorization was denied: "+providerErr)))
		return
	}

	done, err := h.connectService.CompleteAuth(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		slog.Error("failed to complete yahoo auth", "error", err)
		writeHTML(w, respond.StatusOf(err), fmt.Sprintf(htmlError, html.EscapeString(err.Error())))
		return
	}

	target := "/connected?" + connectedQuery(done).Encode()
	if done.Mode == connect.ModeApp && h.deepLink != "" {
		params := connectedQuery(done)
		params.Set("provider", "yahoo")
		target = h.deepLink + "?" + params.Encode()
	}

	http.Redirect(w, r, target, http.StatusFound)
}

func (h *YahooOAuthHandler) HandleConnected(w http.ResponseWriter, r *http.Request) {
	detail := "The account is linked."
	if email := r.URL.Query().Get("email"); email != "" {
		detail = "Linked account: " + email
	}
	writeHTML(w, http.StatusOK, fmt.Sprintf(htmlConnected, html.EscapeString(detail)))
}

func connectedQuery(done *connect.Completion) url.Values {
	params := url.Values{}
	params.Set("user_id", done.UserID)
	if done.Email != "" {
		params.Set("email", done.Email)
	}
	return params
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}
