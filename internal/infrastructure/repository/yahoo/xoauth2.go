package yahoo

import (
	"encoding/base64"

	"github.com/emersion/go-sasl"
)

const xoauth2Mechanism = "XOAUTH2"

// XOAuth2String is the base64 form of the XOAUTH2 initial response.
func XOAuth2String(email, accessToken string) string {
	return base64.StdEncoding.EncodeToString(xoauth2Response(email, accessToken))
}

func xoauth2Response(email, accessToken string) []byte {
	return []byte("user=" + email + "\x01auth=Bearer " + accessToken + "\x01\x01")
}

type xoauth2Client struct {
	email       string
	accessToken string
}

var _ sasl.Client = (*xoauth2Client)(nil)

// NewXOAuth2Client authenticates IMAP and SMTP sessions with a bearer token.
func NewXOAuth2Client(email, accessToken string) sasl.Client {
	return &xoauth2Client{email: email, accessToken: accessToken}
}

func (c *xoauth2Client) Start() (string, []byte, error) {
	return xoauth2Mechanism, xoauth2Response(c.email, c.accessToken), nil
}

// Next answers the server's error challenge with an empty response so the
// server finishes the exchange with a tagged failure.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
