package respond

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/huavcjj/mailgate/internal/apperr"
)

const maxBodyBytes = 1 << 20

// Params holds request parameters: the query string, overlaid by the fields
// of a JSON body on POST.
type Params map[string]string

func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Int returns the integer value of key, or def when absent or malformed.
func (p Params) Int(key string, def int) int {
	v := p.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil {
			return int(f)
		}
		return def
	}
	return n
}

func ReadParams(r *http.Request) (Params, error) {
	params := Params{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	if r.Method != http.MethodPost || r.Body == nil {
		return params, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "failed to read request body", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return params, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, apperr.Validation("request body must be a JSON object")
	}

	for key, value := range body {
		switch v := value.(type) {
		case string:
			params[key] = v
		case json.Number:
			params[key] = v.String()
		case bool:
			params[key] = strconv.FormatBool(v)
		}
	}

	return params, nil
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// StatusOf maps an error kind to an HTTP status code.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	OK             bool   `json:"ok"`
	Error          string `json:"error"`
	Hint           string `json:"hint,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

func Error(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	body := errorBody{Error: err.Error()}
	if e, ok := apperr.As(err); ok {
		body.Hint = e.Hint
		body.UpstreamStatus = e.UpstreamStatus
		body.UpstreamBody = e.UpstreamBody
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "kind", apperr.KindOf(err).String(), "error", err)
	} else {
		slog.Warn("request rejected", "kind", apperr.KindOf(err).String(), "error", err)
	}

	JSON(w, status, body)
}
