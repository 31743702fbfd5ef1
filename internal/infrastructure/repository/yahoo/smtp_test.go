package yahoo

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huavcjj/mailgate/internal/apperr"
	mail_domain "github.com/huavcjj/mailgate/internal/domain/mail"
)

type fakeSMTP struct {
	authErr error
	mech    string
	from    string
	to      []string
	data    string
	quit    bool
}

func (f *fakeSMTP) Auth(a sasl.Client) error {
	mech, _, err := a.Start()
	if err != nil {
		return err
	}
	f.mech = mech
	return f.authErr
}

func (f *fakeSMTP) SendMail(from string, to []string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.from, f.to, f.data = from, to, string(data)
	return nil
}

func (f *fakeSMTP) Quit() error {
	f.quit = true
	return nil
}

func (f *fakeSMTP) Close() error { return nil }

func newFakeSenderRepo(session *fakeSMTP) (*senderRepo, *int) {
	dials := 0
	return &senderRepo{
		addr: "smtp.test:465",
		dial: func(addr string) (smtpSession, error) {
			dials++
			return session, nil
		},
		now: func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) },
	}, &dials
}

func TestSend(t *testing.T) {
	session := &fakeSMTP{}
	repo, _ := newFakeSenderRepo(session)

	id, err := repo.Send(context.Background(), testCreds, mail_domain.Outgoing{
		From:    "a@yahoo.com",
		To:      []string{"Bob <b@example.com>"},
		Subject: "Re: Hi",
		Body:    "thanks",
		Headers: map[string]string{
			"In-Reply-To": "<orig@example.com>",
			"References":  "<root@example.com> <orig@example.com>",
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "<") && strings.HasSuffix(id, ">"), id)
	assert.Equal(t, "XOAUTH2", session.mech)
	assert.Equal(t, "a@yahoo.com", session.from)
	assert.Equal(t, []string{"b@example.com"}, session.to)
	assert.True(t, session.quit)

	assert.Contains(t, session.data, "Subject: Re: Hi\r\n")
	assert.Contains(t, session.data, "In-Reply-To: <orig@example.com>\r\n")
	assert.Contains(t, session.data, "References: <root@example.com> <orig@example.com>\r\n")
	assert.Contains(t, session.data, "Message-Id: "+id+"\r\n")
	assert.Contains(t, session.data, "text/plain")
	assert.Contains(t, session.data, "thanks")
}

func TestSendAuthFailure(t *testing.T) {
	session := &fakeSMTP{authErr: errors.New("535 5.7.0 (#AUTH005) Too many bad auth attempts")}
	repo, _ := newFakeSenderRepo(session)

	_, err := repo.Send(context.Background(), testCreds, mail_domain.Outgoing{
		From: "a@yahoo.com",
		To:   []string{"b@example.com"},
		Body: "x",
	})

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUnauthorized, e.Kind)
	assert.Equal(t, apperr.MailPermissionHint, e.Hint)
	assert.Empty(t, session.data)
}

func TestSendInvalidRecipient(t *testing.T) {
	repo, dials := newFakeSenderRepo(&fakeSMTP{})

	_, err := repo.Send(context.Background(), testCreds, mail_domain.Outgoing{
		From: "a@yahoo.com",
		To:   []string{"not an address"},
		Body: "x",
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, *dials)
}
