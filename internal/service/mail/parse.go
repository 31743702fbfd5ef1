package mail

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"

	mail_domain "github.com/huavcjj/mailgate/internal/domain/mail"
)

// ParseMessage turns a raw RFC 5322 message into structured fields. The
// first text/plain part is the body; an HTML part is converted to text when
// no plain part exists.
func ParseMessage(id string, r io.Reader) (*mail_domain.Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}
	defer mr.Close()

	h := mr.Header
	msg := &mail_domain.Message{
		ID:        id,
		From:      addressField(h, "From"),
		ReplyTo:   addressField(h, "Reply-To"),
		To:        addressField(h, "To"),
		Cc:        addressField(h, "Cc"),
		Date:      h.Get("Date"),
		MessageID: strings.TrimSpace(h.Get("Message-Id")),
		InReplyTo: strings.TrimSpace(h.Get("In-Reply-To")),
	}

	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}

	msg.References = referenceList(h)

	var plain, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read part of message %s: %w", id, err)
		}
		if part == nil {
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := inline.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body of message %s: %w", id, err)
		}

		switch contentType {
		case "text/plain":
			if plain == "" {
				plain = string(body)
			}
		case "text/html":
			if htmlBody == "" {
				htmlBody = string(body)
			}
		}
	}

	msg.Text = plain
	if msg.Text == "" && htmlBody != "" {
		msg.Text = htmlToText(htmlBody)
	}
	msg.Snippet = Snippet(msg.Text)

	return msg, nil
}

// Snippet collapses whitespace and keeps the first SnippetLength characters.
func Snippet(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(collapsed) <= mail_domain.SnippetLength {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:mail_domain.SnippetLength])
}

func addressField(h mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return decodeHeader(h.Get(key))
	}
	formatted := make([]string, 0, len(addrs))
	for _, a := range addrs {
		formatted = append(formatted, formatAddress(a))
	}
	return strings.Join(formatted, ", ")
}

// formatAddress renders "Name <addr>", quoting the display name when it
// contains specials so the result parses back as the same address.
func formatAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	name := a.Name
	if strings.ContainsAny(name, `()<>[]:;@\,."`) {
		name = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name) + `"`
	}
	return name + " <" + a.Address + ">"
}

// bareAddresses reduces an address list to its addr-specs. Values that do
// not parse are returned unchanged.
func bareAddresses(v string) string {
	addrs, err := mail.ParseAddressList(v)
	if err != nil || len(addrs) == 0 {
		return v
	}
	bare := make([]string, 0, len(addrs))
	for _, a := range addrs {
		bare = append(bare, a.Address)
	}
	return strings.Join(bare, ", ")
}

func referenceList(h mail.Header) []string {
	ids, err := h.MsgIDList("References")
	if err != nil {
		return strings.Fields(h.Get("References"))
	}
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, "<"+id+">")
	}
	return refs
}

var headerDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

func decodeHeader(v string) string {
	decoded, err := headerDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "tr": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "ul": true, "ol": true, "blockquote": true,
}

// htmlToText keeps the visible text of an HTML document and breaks lines at
// block elements.
func htmlToText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var buf bytes.Buffer
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(buf.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" {
				skip++
				continue
			}
			if blockElements[tag] {
				buf.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" {
				if skip > 0 {
					skip--
				}
				continue
			}
			if blockElements[tag] {
				buf.WriteByte('\n')
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if buf.Len() > 0 {
				last := buf.Bytes()[buf.Len()-1]
				if last != '\n' && last != ' ' {
					buf.WriteByte(' ')
				}
			}
			buf.WriteString(text)
		}
	}
}
