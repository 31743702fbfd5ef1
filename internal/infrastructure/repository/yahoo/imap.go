package yahoo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/huavcjj/mailgate/internal/apperr"
	mail_domain "github.com/huavcjj/mailgate/internal/domain/mail"
)

const DefaultIMAPAddr = "imap.mail.yahoo.com:993"

type headerBlock struct {
	SeqNum uint32
	Raw    []byte
}

// mailboxSession is the slice of an IMAP connection the repo needs.
type mailboxSession interface {
	// Examine opens a mailbox read-only and returns its message count.
	Examine(mailbox string) (uint32, error)
	FetchHeaders(from, to uint32, fields []string) ([]headerBlock, error)
	FetchRaw(seqNum uint32) ([]byte, error)
	Close() error
}

type imapDialFunc func(ctx context.Context, addr string, creds mail_domain.Credentials) (mailboxSession, error)

type mailboxRepo struct {
	addr string
	dial imapDialFunc
}

var _ mail_domain.MailboxRepo = (*mailboxRepo)(nil)

func NewMailboxRepo(addr string) mail_domain.MailboxRepo {
	if addr == "" {
		addr = DefaultIMAPAddr
	}
	return &mailboxRepo{
		addr: addr,
		dial: dialIMAP,
	}
}

// ListHeaders returns summaries of the newest max INBOX messages, newest
// first. Messages are never marked as seen.
func (r *mailboxRepo) ListHeaders(ctx context.Context, creds mail_domain.Credentials, max int) ([]mail_domain.Summary, error) {
	session, err := r.dial(ctx, r.addr, creds)
	if err != nil {
		return nil, apperr.ClassifyMail("imap login", err)
	}
	defer closeSession(session)

	total, err := session.Examine("INBOX")
	if err != nil {
		return nil, apperr.ClassifyMail("imap examine", err)
	}
	if total == 0 {
		return []mail_domain.Summary{}, nil
	}

	from, to := seqRange(total, max)
	blocks, err := session.FetchHeaders(from, to, headerFields)
	if err != nil {
		return nil, apperr.ClassifyMail("imap fetch", err)
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].SeqNum > blocks[j].SeqNum
	})

	summaries := make([]mail_domain.Summary, 0, len(blocks))
	for _, block := range blocks {
		summaries = append(summaries, summaryFromHeaders(block.SeqNum, ParseHeaderBlock(string(block.Raw))))
	}

	return summaries, nil
}

// ReadRaw fetches the full RFC 5322 source of one message without setting
// the \Seen flag.
func (r *mailboxRepo) ReadRaw(ctx context.Context, creds mail_domain.Credentials, seqNum uint32) (io.Reader, error) {
	if seqNum == 0 {
		return nil, apperr.Validation("message id must be a positive sequence number")
	}

	session, err := r.dial(ctx, r.addr, creds)
	if err != nil {
		return nil, apperr.ClassifyMail("imap login", err)
	}
	defer closeSession(session)

	total, err := session.Examine("INBOX")
	if err != nil {
		return nil, apperr.ClassifyMail("imap examine", err)
	}
	if seqNum > total {
		return nil, apperr.Validation(fmt.Sprintf("message %d not found", seqNum))
	}

	raw, err := session.FetchRaw(seqNum)
	if err != nil {
		return nil, apperr.ClassifyMail("imap fetch", err)
	}

	return bytes.NewReader(raw), nil
}

func summaryFromHeaders(seqNum uint32, headers map[string]string) mail_domain.Summary {
	return mail_domain.Summary{
		ID:         strconv.FormatUint(uint64(seqNum), 10),
		From:       headers["from"],
		To:         headers["to"],
		Subject:    headers["subject"],
		Date:       headers["date"],
		MessageID:  headers["message-id"],
		References: headers["references"],
		InReplyTo:  headers["in-reply-to"],
	}
}

func closeSession(session mailboxSession) {
	if err := session.Close(); err != nil {
		slog.Warn("failed to close imap session", "error", err)
	}
}

type imapSession struct {
	client *imapclient.Client
}

func dialIMAP(ctx context.Context, addr string, creds mail_domain.Credentials) (mailboxSession, error) {
	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := client.Authenticate(NewXOAuth2Client(creds.Email, creds.AccessToken)); err != nil {
		client.Close()
		return nil, fmt.Errorf("IMAP authentication failed: %w", err)
	}

	return &imapSession{client: client}, nil
}

func (s *imapSession) Examine(mailbox string) (uint32, error) {
	data, err := s.client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, fmt.Errorf("failed to examine %s: %w", mailbox, err)
	}
	return data.NumMessages, nil
}

func (s *imapSession) FetchHeaders(from, to uint32, fields []string) ([]headerBlock, error) {
	var seqSet imap.SeqSet
	seqSet.AddRange(from, to)

	section := &imap.FetchItemBodySection{
		Specifier:    imap.PartSpecifierHeader,
		HeaderFields: fields,
		Peek:         true,
	}

	msgs, err := s.client.Fetch(seqSet, &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch headers %d:%d: %w", from, to, err)
	}

	blocks := make([]headerBlock, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, headerBlock{SeqNum: msg.SeqNum, Raw: msg.FindBodySection(section)})
	}
	return blocks, nil
}

func (s *imapSession) FetchRaw(seqNum uint32) ([]byte, error) {
	section := &imap.FetchItemBodySection{Peek: true}

	msgs, err := s.client.Fetch(imap.SeqSetNum(seqNum), &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", seqNum, err)
	}
	if len(msgs) == 0 {
		return nil, apperr.Validation(fmt.Sprintf("message %d not found", seqNum))
	}

	return msgs[0].FindBodySection(section), nil
}

func (s *imapSession) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		s.client.Close()
		return fmt.Errorf("failed to logout: %w", err)
	}
	return s.client.Close()
}
