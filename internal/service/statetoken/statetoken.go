package statetoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 10 * time.Minute

// ErrInvalidState is returned for every verification failure so callers cannot
// tell a bad signature from a bad payload or an expired token.
var ErrInvalidState = errors.New("invalid or expired state")

// Payload is carried through the OAuth redirect.
type Payload struct {
	UserID string `json:"user_id"`
	Mode   string `json:"mode"`
	Email  string `json:"email,omitempty"`
	Nonce  string `json:"nonce"`
	// Exp is the expiry in epoch milliseconds.
	Exp int64 `json:"exp"`
}

var encoding = base64.RawURLEncoding.Strict()

type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates a codec. An empty secret is replaced with a random one, which
// invalidates outstanding states on restart.
func New(secret string, ttl time.Duration) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, fmt.Errorf("failed to generate state secret: %w", err)
		}
		secret = hex.EncodeToString(generated)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign fills in a missing nonce and expiry and returns
// base64url(json) + "." + hex(hmac).
func (c *Codec) Sign(p Payload) (string, error) {
	if p.Nonce == "" {
		p.Nonce = uuid.NewString()
	}
	if p.Exp == 0 {
		p.Exp = c.now().Add(c.ttl).UnixMilli()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}

	return encoding.EncodeToString(raw) + "." + c.mac(raw), nil
}

func (c *Codec) Verify(token string) (*Payload, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidState
	}

	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidState
	}

	expected := c.mac(raw)
	if len(sig) != len(expected) || !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, ErrInvalidState
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrInvalidState
	}

	if p.Exp <= c.now().UnixMilli() {
		return nil, ErrInvalidState
	}

	return &p, nil
}

func (c *Codec) mac(raw []byte) string {
	m := hmac.New(sha256.New, c.secret)
	m.Write(raw)
	return hex.EncodeToString(m.Sum(nil))
}
