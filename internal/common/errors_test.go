package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := ErrInvalid("port", "must be between 1 and 65535, got %d", 70000)

	var vErr ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "port", vErr.Field)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrTransport))
	assert.Contains(t, err.Error(), "70000")
}

func TestTransportError_Wrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrTransportFailed("rest", "post", cause)

	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "rest post: connection refused", err.Error())

	wrapped := WrapError(err, "dispatch")
	var tErr TransportError
	assert.True(t, errors.As(wrapped, &tErr))
	assert.Equal(t, "rest", tErr.Transport)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalid("queue", "empty"), KindValidation},
		{fmt.Errorf("%w: /etc/aes.key", ErrKeyNotFound), KindKeyNotFound},
		{fmt.Errorf("%w: got 16 bytes", ErrInvalidKeyLength), KindInvalidKeyLength},
		{fmt.Errorf("open: %w", ErrAuthenticationFailed), KindAuthenticationFailed},
		{fmt.Errorf("seal: %w", ErrEncryptionFailure), KindEncryptionFailure},
		{ErrTransportFailed("dbus", "call", nil), KindTransport},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "err=%v", tt.err)
	}
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
}
