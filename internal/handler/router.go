package handler

import (
	"fmt"
	"net/http"

	"github.com/huavcjj/mailgate/internal/handler/mail"
	"github.com/huavcjj/mailgate/internal/handler/oauth"
	"github.com/huavcjj/mailgate/internal/handler/verdict"
	"github.com/huavcjj/mailgate/internal/metrics"
)

type Handlers struct {
	OAuth   *oauth.YahooOAuthHandler
	Mail    *mail.MailHandler
	Verdict *verdict.VerdictHandler
	// Metrics is optional.
	Metrics *metrics.Metrics
}

func NewRouter(h Handlers) http.Handler {
	mux := http.NewServeMux()

	handle := func(methods []string, path string, fn http.HandlerFunc) {
		var next http.Handler = fn
		if h.Metrics != nil {
			next = h.Metrics.Instrument(path, next)
		}
		for _, method := range methods {
			mux.Handle(method+" "+path, next)
		}
	}

	get := []string{http.MethodGet}
	getPost := []string{http.MethodGet, http.MethodPost}

	handle(get, "/auth", h.OAuth.HandleAuth)
	handle(get, "/auth-url", h.OAuth.HandleAuthURL)
	handle(get, "/oauth2callback", h.OAuth.HandleCallback)
	handle(get, "/connected", h.OAuth.HandleConnected)

	handle(get, "/status", h.Mail.HandleStatus)
	handle(getPost, "/disconnect", h.Mail.HandleDisconnect)
	handle(getPost, "/list", h.Mail.HandleList)
	handle(getPost, "/read", h.Mail.HandleRead)
	handle(getPost, "/send", h.Mail.HandleSend)
	handle(getPost, "/reply", h.Mail.HandleReply)

	handle([]string{http.MethodPost}, "/verdict", h.Verdict.HandleVerdict)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	return mux
}
