package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError()
	assert.Equal(t, "Transfer not found", err.Error())
	assert.Equal(t, TagNotFound, err.Tag())

	wrapped := fmt.Errorf("poll: %w", err)
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsNotFound(NewTransportError(errors.New("x"))))
	assert.False(t, IsNotFound(nil))
}

func TestTagOf(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		err  error
		want ErrorTag
	}{
		{NewNotFoundError(), TagNotFound},
		{NewTransportError(cause), TagTransport},
		{NewSubmissionError("ethereum.1", cause), TagSubmission},
		{NewReceiptError("ethereum.1", "0x01", cause), TagReceipt},
		{NewReceiptError("ethereum.1", "0x01", fmt.Errorf("wait: %w", context.DeadlineExceeded)), TagReceiptTimeout},
		{fmt.Errorf("outer: %w", NewSubmissionError("ethereum.1", cause)), TagSubmission},
		{cause, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TagOf(tt.err), tt.err.Error())
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("nonce too low")
	assert.ErrorIs(t, NewTransportError(cause), cause)
	assert.ErrorIs(t, NewSubmissionError("ethereum.1", cause), cause)
	assert.ErrorIs(t, NewReceiptError("ethereum.1", "0x01", cause), cause)

	msg := NewReceiptError("ethereum.1", "0x01", context.DeadlineExceeded).Error()
	assert.Contains(t, msg, "receipt timeout")
	assert.Contains(t, msg, "hash=0x01")
}

func TestNewErrorBody(t *testing.T) {
	assert.Nil(t, NewErrorBody(nil))

	body := NewErrorBody(NewNotFoundError())
	require.NotNil(t, body)
	assert.Equal(t, ErrorBody{Tag: TagNotFound, Message: NotFoundMessage}, *body)

	body = NewErrorBody(errors.New("untyped"))
	assert.Equal(t, TagTransport, body.Tag)
}
