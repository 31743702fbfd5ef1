package yahoo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/huavcjj/mailgate/internal/apperr"
	mail_domain "github.com/huavcjj/mailgate/internal/domain/mail"
)

const DefaultSMTPAddr = "smtp.mail.yahoo.com:465"

// smtpSession is satisfied by *smtp.Client.
type smtpSession interface {
	Auth(a sasl.Client) error
	SendMail(from string, to []string, r io.Reader) error
	Quit() error
	Close() error
}

type smtpDialFunc func(addr string) (smtpSession, error)

type senderRepo struct {
	addr string
	dial smtpDialFunc
	now  func() time.Time
}

var _ mail_domain.SenderRepo = (*senderRepo)(nil)

func NewSenderRepo(addr string) mail_domain.SenderRepo {
	if addr == "" {
		addr = DefaultSMTPAddr
	}
	return &senderRepo{
		addr: addr,
		dial: dialSMTP,
		now:  time.Now,
	}
}

func dialSMTP(addr string) (smtpSession, error) {
	client, err := smtp.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return client, nil
}

func (r *senderRepo) Send(ctx context.Context, creds mail_domain.Credentials, msg mail_domain.Outgoing) (string, error) {
	recipients, err := mail.ParseAddressList(strings.Join(msg.To, ", "))
	if err != nil || len(recipients) == 0 {
		return "", apperr.Validation(fmt.Sprintf("invalid recipient %q", strings.Join(msg.To, ", ")))
	}

	raw, messageID, err := composeMessage(msg, recipients, r.now())
	if err != nil {
		return "", err
	}

	session, err := r.dial(r.addr)
	if err != nil {
		return "", apperr.ClassifyMail("smtp connect", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Debug("smtp session close", "error", err)
		}
	}()

	if err := session.Auth(NewXOAuth2Client(creds.Email, creds.AccessToken)); err != nil {
		return "", apperr.ClassifyMail("smtp login", fmt.Errorf("SMTP authentication failed: %w", err))
	}

	envelope := make([]string, 0, len(recipients))
	for _, rcpt := range recipients {
		envelope = append(envelope, rcpt.Address)
	}

	if err := session.SendMail(creds.Email, envelope, bytes.NewReader(raw)); err != nil {
		return "", apperr.ClassifyMail("smtp send", err)
	}

	if err := session.Quit(); err != nil {
		slog.Warn("failed to quit smtp session", "error", err)
	}

	return messageID, nil
}

// composeMessage renders a text/plain UTF-8 message and returns it with its
// Message-Id in angle brackets.
func composeMessage(msg mail_domain.Outgoing, to []*mail.Address, now time.Time) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("failed to generate message id: %w", err)
	}

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := msg.Headers[k]; v != "" {
			h.Set(k, v)
		}
	}

	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, "", fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish message: %w", err)
	}

	id, err := h.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read message id: %w", err)
	}

	return buf.Bytes(), "<" + id + ">", nil
}
