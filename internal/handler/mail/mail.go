package mail

import (
	"net/http"

	"github.com/huavcjj/mailgate/internal/apperr"
	mail_domain "github.com/huavcjj/mailgate/internal/domain/mail"
	"github.com/huavcjj/mailgate/internal/handler/respond"
	"github.com/huavcjj/mailgate/internal/service/connect"
	mail_service "github.com/huavcjj/mailgate/internal/service/mail"
)

type MailHandler struct {
	mailService    *mail_service.Service
	connectService *connect.Service
}

func NewMailHandler(mailService *mail_service.Service, connectService *connect.Service) *MailHandler {
	return &MailHandler{
		mailService:    mailService,
		connectService: connectService,
	}
}

// params reads the request parameters and requires user_id.
func params(r *http.Request) (respond.Params, string, error) {
	p, err := respond.ReadParams(r)
	if err != nil {
		return nil, "", err
	}
	userID := p.Get("user_id")
	if userID == "" {
		return nil, "", apperr.Validation("user_id is required")
	}
	return p, userID, nil
}

func (h *MailHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_, userID, err := params(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	status, err := h.connectService.Status(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"connected":        status.Connected,
		"email":            status.Email,
		"token_expires_at": status.TokenExpiresAt,
	})
}

func (h *MailHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	_, userID, err := params(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	if err := h.connectService.Disconnect(r.Context(), userID); err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "disconnected": true})
}

func (h *MailHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, userID, err := params(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	summaries, err := h.mailService.List(r.Context(), userID, p.Int("maxResults", mail_domain.DefaultListResults))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "q": "INBOX", "emails": summaries})
}

func (h *MailHandler) HandleRead(w http.ResponseWriter, r *http.Request) {
	p, userID, err := params(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if p.Get("id") == "" {
		respond.Error(w, apperr.Validation("id is required"))
		return
	}

	msg, err := h.mailService.Read(r.Context(), userID, p.Get("id"))
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "email": msg})
}

func (h *MailHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	p, userID, err := params(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	headers := map[string]string{}
	for _, key := range []string{"In-Reply-To", "References"} {
		if v := p.Get(key); v != "" {
			headers[key] = v
		}
	}

	// body is read untrimmed.
	id, err := h.mailService.Send(r.Context(), userID, p.Get("to"), p.Get("subject"), p["body"], headers)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "threadId": nil})
}

func (h *MailHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	p, userID, err := params(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if p.Get("id") == "" {
		respond.Error(w, apperr.Validation("id is required"))
		return
	}

	id, err := h.mailService.Reply(r.Context(), userID, p.Get("id"), p["body"])
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "threadId": nil})
}
