package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so the HTTP surface can map it to a status code
// in one place.
type Kind int

const (
	KindInternal Kind = iota
	KindConfig
	KindValidation
	KindUnauthorized
	KindUpstream
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstream:
		return "upstream"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return "internal"
	}
}

const MailPermissionHint = "Yahoo rejected the OAuth credentials. Make sure the app was granted Mail read/write permission, then reconnect."

type Error struct {
	Kind    Kind
	Message string
	Hint    string

	// UpstreamStatus and UpstreamBody echo a provider response for diagnostics.
	UpstreamStatus int
	UpstreamBody   string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Config(message string) *Error {
	return New(KindConfig, message)
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Unauthorized(message, hint string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message, Hint: hint}
}

func Upstream(message string, status int, body string) *Error {
	return &Error{Kind: KindUpstream, Message: message, UpstreamStatus: status, UpstreamBody: body}
}

var ErrStorageUnavailable = New(KindStorageUnavailable, "token storage is unavailable")

var (
	ErrNotConnected   = Unauthorized("yahoo account not connected", "Connect the account through /auth first.")
	ErrReauthRequired = Unauthorized("reauthorization required", "No refresh token is stored. Reconnect the account through /auth.")
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

var authFailurePatterns = []string{"auth", "authentication", "invalid credentials"}

// IsAuthFailure reports whether err's message looks like a provider
// authentication rejection.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range authFailurePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ClassifyMail turns a raw IMAP/SMTP failure into an authorization error when
// the provider rejected the credentials. Errors that already carry a kind are
// returned unchanged.
func ClassifyMail(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	if IsAuthFailure(err) {
		return &Error{Kind: KindUnauthorized, Message: op + " failed", Hint: MailPermissionHint, Err: err}
	}
	return Wrap(KindInternal, op+" failed", err)
}
