package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "imap AUTHENTICATE rejected", err: errors.New("NO [AUTHENTICATIONFAILED] AUTHENTICATE failed"), want: true},
		{name: "smtp auth", err: errors.New("535 5.7.0 (#AUTH005) Too many bad auth attempts"), want: true},
		{name: "invalid credentials", err: errors.New("Invalid Credentials"), want: true},
		{name: "network", err: errors.New("dial tcp: connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthFailure(tt.err))
		})
	}
}

func TestClassifyMail(t *testing.T) {
	t.Run("auth failure becomes unauthorized with hint", func(t *testing.T) {
		err := ClassifyMail("imap login", errors.New("AUTHENTICATE failed"))
		e, ok := As(err)
		require.True(t, ok)
		assert.Equal(t, KindUnauthorized, e.Kind)
		assert.Equal(t, MailPermissionHint, e.Hint)
	})

	t.Run("typed errors pass through", func(t *testing.T) {
		err := ClassifyMail("list", fmt.Errorf("failed to load: %w", ErrNotConnected))
		assert.Equal(t, KindUnauthorized, KindOf(err))
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("other failures are internal", func(t *testing.T) {
		err := ClassifyMail("imap fetch", errors.New("connection reset by peer"))
		assert.Equal(t, KindInternal, KindOf(err))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, ClassifyMail("x", nil))
	})
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindStorageUnavailable, KindOf(fmt.Errorf("save: %w", ErrStorageUnavailable)))
}
