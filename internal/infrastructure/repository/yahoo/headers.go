package yahoo

import (
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
)

var headerFields = []string{
	"From", "To", "Subject", "Date", "Message-Id", "References", "In-Reply-To", "Reply-To",
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// ParseHeaderBlock unfolds continuation lines and splits each logical line on
// its first colon. Keys are lower-cased and the first occurrence of a key wins.
func ParseHeaderBlock(raw string) map[string]string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += " " + strings.TrimSpace(line)
			continue
		}
		lines = append(lines, line)
	}

	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, seen := headers[key]; seen {
			continue
		}
		headers[key] = decodeWords(strings.TrimSpace(value))
	}

	return headers
}

func decodeWords(value string) string {
	if !strings.Contains(value, "=?") {
		return value
	}
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// seqRange returns the sequence range covering the newest max messages of a
// mailbox holding total messages. total must be positive.
func seqRange(total uint32, max int) (uint32, uint32) {
	from := uint32(1)
	if max > 0 && total > uint32(max) {
		from = total - uint32(max) + 1
	}
	return from, total
}
