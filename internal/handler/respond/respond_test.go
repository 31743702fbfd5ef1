package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huavcjj/mailgate/internal/apperr"
)

func TestReadParamsQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/list?user_id=u1&maxResults=5", nil)

	p, err := ReadParams(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.Get("user_id"))
	assert.Equal(t, 5, p.Int("maxResults", 10))
	assert.Equal(t, 10, p.Int("missing", 10))
}

func TestReadParamsBodyOverlaysQuery(t *testing.T) {
	body := `{"user_id":"u2","maxResults":7,"to":"x@example.com","flag":true,"nested":{"a":1}}`
	r := httptest.NewRequest(http.MethodPost, "/send?user_id=u1&subject=hi", strings.NewReader(body))

	p, err := ReadParams(r)
	require.NoError(t, err)
	assert.Equal(t, "u2", p.Get("user_id"))
	assert.Equal(t, "hi", p.Get("subject"))
	assert.Equal(t, 7, p.Int("maxResults", 10))
	assert.Equal(t, "x@example.com", p.Get("to"))
	assert.Equal(t, "true", p.Get("flag"))
	_, hasNested := p["nested"]
	assert.False(t, hasNested)
}

func TestReadParamsEmptyPostBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/disconnect?user_id=u1", nil)

	p, err := ReadParams(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", p.Get("user_id"))
}

func TestReadParamsInvalidBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader("not json"))

	_, err := ReadParams(r)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestIntAcceptsFloat(t *testing.T) {
	assert.Equal(t, 3, Params{"n": "3.0"}.Int("n", 1))
	assert.Equal(t, 1, Params{"n": "abc"}.Int("n", 1))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(apperr.Validation("x")))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(apperr.ErrNotConnected))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(apperr.Config("x")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(apperr.ErrStorageUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperr.Upstream("token exchange failed", 400, `{"error":"invalid_grant"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "token exchange failed", body["error"])
	assert.Equal(t, float64(400), body["upstream_status"])
	assert.Equal(t, `{"error":"invalid_grant"}`, body["upstream_body"])
	_, hasHint := body["hint"]
	assert.False(t, hasHint)
}

func TestErrorBodyWithHint(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, apperr.ErrReauthRequired)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "reauthorization required", body["error"])
	assert.NotEmpty(t, body["hint"])
}
