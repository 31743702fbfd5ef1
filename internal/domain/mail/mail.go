package mail

import (
	"context"
	"io"
)

const (
	MaxListResults     = 25
	DefaultListResults = 10
	SnippetLength      = 180
)

type Summary struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Date       string `json:"date"`
	MessageID  string `json:"messageId"`
	References string `json:"references"`
	InReplyTo  string `json:"inReplyTo"`
	Snippet    string `json:"snippet"`
}

type Message struct {
	ID         string   `json:"id"`
	From       string   `json:"from"`
	ReplyTo    string   `json:"replyTo"`
	To         string   `json:"to"`
	Cc         string   `json:"cc"`
	Subject    string   `json:"subject"`
	Date       string   `json:"date"`
	MessageID  string   `json:"messageId"`
	References []string `json:"references"`
	InReplyTo  string   `json:"inReplyTo"`
	Text       string   `json:"text"`
	Snippet    string   `json:"snippet"`
}

// Credentials authenticate one mailbox or outbound session.
type Credentials struct {
	Email       string
	AccessToken string
}

// Outgoing is a plain-text message. Headers are copied verbatim.
type Outgoing struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string]string
}

type MailboxRepo interface {
	// ListHeaders returns at most max summaries, newest first.
	ListHeaders(ctx context.Context, creds Credentials, max int) ([]Summary, error)
	// ReadRaw returns the complete RFC 5322 message for a sequence number.
	ReadRaw(ctx context.Context, creds Credentials, seq uint32) (io.Reader, error)
}

type SenderRepo interface {
	// Send dispatches msg and returns the Message-Id it was sent with.
	Send(ctx context.Context, creds Credentials, msg Outgoing) (string, error)
}
