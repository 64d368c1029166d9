package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: NewValidationError("No text provided"), want: KindValidation},
		{name: "not found", err: NewNotFoundError("No unread emails found"), want: KindNotFound},
		{name: "auth", err: NewAuthError("missing client secrets", errors.New("open credentials.json: no such file")), want: KindAuth},
		{name: "remote", err: NewRemoteError("failed to list messages", errors.New("connection refused")), want: KindRemote},
		{name: "decode", err: NewDecodeError("malformed body data", errors.New("illegal base64 data")), want: KindDecode},
		{name: "wrapped", err: fmt.Errorf("fetch failed: %w", NewAuthError("token expired", nil)), want: KindAuth},
		{name: "plain error", err: errors.New("boom"), want: Kind("")},
		{name: "nil", err: nil, want: Kind("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := NewRemoteError("failed to list messages", errors.New("connection refused"))
	assert.Equal(t, "failed to list messages: connection refused", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "connection refused")

	bare := NewNotFoundError("No unread emails found")
	assert.Equal(t, "No unread emails found", bare.Error())
}
