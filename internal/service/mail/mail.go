package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/huavcjj/mailgate/internal/apperr"
	mail_domain "github.com/huavcjj/mailgate/internal/domain/mail"
	"github.com/huavcjj/mailgate/internal/service/token"
)

type TokenProvider interface {
	GetValid(ctx context.Context, userID string) (*token.Tokens, error)
}

type Service struct {
	tokens  TokenProvider
	mailbox mail_domain.MailboxRepo
	sender  mail_domain.SenderRepo
}

func NewService(tokens TokenProvider, mailbox mail_domain.MailboxRepo, sender mail_domain.SenderRepo) *Service {
	return &Service{
		tokens:  tokens,
		mailbox: mailbox,
		sender:  sender,
	}
}

func (s *Service) credentials(ctx context.Context, userID string) (mail_domain.Credentials, error) {
	tokens, err := s.tokens.GetValid(ctx, userID)
	if err != nil {
		return mail_domain.Credentials{}, err
	}
	if tokens.Email == "" {
		return mail_domain.Credentials{}, apperr.Unauthorized(
			"mailbox address unknown for this connection",
			"Reconnect through /auth?user_id=...&email=you@yahoo.com so the address is recorded.",
		)
	}
	return mail_domain.Credentials{Email: tokens.Email, AccessToken: tokens.AccessToken}, nil
}

// List returns the newest INBOX summaries. maxResults is clamped to
// [1, MaxListResults] and defaults to DefaultListResults.
func (s *Service) List(ctx context.Context, userID string, maxResults int) ([]mail_domain.Summary, error) {
	creds, err := s.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries, err := s.mailbox.ListHeaders(ctx, creds, ClampMaxResults(maxResults))
	if err != nil {
		return nil, err
	}

	slog.Info("listed yahoo inbox", "user_id", userID, "count", len(summaries))
	return summaries, nil
}

func (s *Service) Read(ctx context.Context, userID, id string) (*mail_domain.Message, error) {
	seqNum, err := parseID(id)
	if err != nil {
		return nil, err
	}

	creds, err := s.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	raw, err := s.mailbox.ReadRaw(ctx, creds, seqNum)
	if err != nil {
		return nil, err
	}

	msg, err := ParseMessage(id, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to parse message", err)
	}
	return msg, nil
}

// Send dispatches a plain-text message. headers are passed through as-is,
// which is how replies carry In-Reply-To and References.
func (s *Service) Send(ctx context.Context, userID, to, subject, body string, headers map[string]string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", apperr.Validation("to is required")
	}
	if body == "" {
		return "", apperr.Validation("body is required")
	}

	creds, err := s.credentials(ctx, userID)
	if err != nil {
		return "", err
	}

	id, err := s.sender.Send(ctx, creds, mail_domain.Outgoing{
		From:    creds.Email,
		To:      []string{to},
		Subject: subject,
		Body:    body,
		Headers: headers,
	})
	if err != nil {
		return "", err
	}

	slog.Info("sent yahoo mail", "user_id", userID, "message_id", id)
	return id, nil
}

func (s *Service) Reply(ctx context.Context, userID, id, body string) (string, error) {
	if body == "" {
		return "", apperr.Validation("body is required")
	}

	original, err := s.Read(ctx, userID, id)
	if err != nil {
		return "", err
	}

	to := ReplyRecipient(original)
	if to == "" {
		return "", apperr.Validation(fmt.Sprintf("message %s has no sender to reply to", id))
	}

	headers := map[string]string{}
	if original.MessageID != "" {
		headers["In-Reply-To"] = original.MessageID
	}
	if len(original.References) > 0 {
		headers["References"] = strings.Join(original.References, " ")
	}

	return s.Send(ctx, userID, to, ReplySubject(original.Subject), body, headers)
}

// ReplySubject prefixes "Re: " unless the subject already starts with "re:"
// in any case.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}

// ReplyRecipient prefers Reply-To over From and strips display names.
func ReplyRecipient(msg *mail_domain.Message) string {
	if msg.ReplyTo != "" {
		return bareAddresses(msg.ReplyTo)
	}
	return bareAddresses(msg.From)
}

func ClampMaxResults(n int) int {
	switch {
	case n <= 0:
		return mail_domain.DefaultListResults
	case n > mail_domain.MaxListResults:
		return mail_domain.MaxListResults
	default:
		return n
	}
}

func parseID(id string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 32)
	if err != nil || n == 0 {
		return 0, apperr.Validation(fmt.Sprintf("invalid message id %q", id))
	}
	return uint32(n), nil
}
