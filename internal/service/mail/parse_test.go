package mail

import (
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = "From: Alice <alice@example.com>\r\n" +
	"Reply-To: replies@example.com\r\n" +
	"To: bob@yahoo.com\r\n" +
	"Cc: Carol <carol@example.com>, dave@example.com\r\n" +
	"Subject: =?UTF-8?Q?Caf=C3=A9_plans?=\r\n" +
	"Date: Fri, 16 Oct 2026 09:30:00 +0000\r\n" +
	"Message-Id: <m2@example.com>\r\n" +
	"In-Reply-To: <m1@example.com>\r\n" +
	"References: <m0@example.com> <m1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See you at noon.\r\n"

func TestParseMessagePlain(t *testing.T) {
	msg, err := ParseMessage("7", strings.NewReader(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "7", msg.ID)
	assert.Equal(t, "Alice <alice@example.com>", msg.From)
	assert.Equal(t, "replies@example.com", msg.ReplyTo)
	assert.Equal(t, "bob@yahoo.com", msg.To)
	assert.Equal(t, "Carol <carol@example.com>, dave@example.com", msg.Cc)
	assert.Equal(t, "Café plans", msg.Subject)
	assert.Equal(t, "Fri, 16 Oct 2026 09:30:00 +0000", msg.Date)
	assert.Equal(t, "<m2@example.com>", msg.MessageID)
	assert.Equal(t, "<m1@example.com>", msg.InReplyTo)
	assert.Equal(t, []string{"<m0@example.com>", "<m1@example.com>"}, msg.References)
	assert.Equal(t, "See you at noon.\r\n", msg.Text)
	assert.Equal(t, "See you at noon.", msg.Snippet)
}

func TestParseMessageMultipartPrefersPlain(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: hi\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html version</p>\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain version\r\n" +
		"--XYZ--\r\n"

	msg, err := ParseMessage("1", strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "plain version", strings.TrimSpace(msg.Text))
}

func TestParseMessageHTMLOnly(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: hi\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><head><style>p{color:red}</style></head><body><p>Hello &amp; welcome</p><p>Second</p><script>x()</script></body></html>\r\n"

	msg, err := ParseMessage("1", strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome\n\nSecond", msg.Text)
	assert.Equal(t, "Hello & welcome Second", msg.Snippet)
}

func TestParseMessageWithoutReferences(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: hi\r\n\r\nbody\r\n"

	msg, err := ParseMessage("1", strings.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, msg.References)
	assert.Empty(t, msg.ReplyTo)
	assert.Equal(t, "body\r\n", msg.Text)
}

func TestParseMessageAddressFallbackDecodesCharset(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"To: =?windows-1251?B?z/Do4uXy?=\r\n" +
		"Subject: hi\r\n\r\nbody\r\n"

	msg, err := ParseMessage("1", strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Привет", msg.To)
}

func TestFormatAddressRoundTrips(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{header: "Alice <alice@example.com>", want: "Alice <alice@example.com>"},
		{header: `"Doe, John" <john@example.com>`, want: `"Doe, John" <john@example.com>`},
		{header: "bare@example.com", want: "bare@example.com"},
	}

	for _, tt := range tests {
		raw := "From: " + tt.header + "\r\nSubject: x\r\n\r\nbody\r\n"
		msg, err := ParseMessage("1", strings.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, tt.want, msg.From)

		parsed, err := mail.ParseAddressList(msg.From)
		require.NoError(t, err, msg.From)
		require.Len(t, parsed, 1)
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", Snippet("  a\n\tb   c \r\n"))

	long := strings.Repeat("é", 200)
	got := Snippet(long)
	assert.Equal(t, 180, len([]rune(got)))
	assert.Equal(t, strings.Repeat("é", 180), got)
}
