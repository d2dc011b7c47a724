package types

import (
	"context"
	"errors"
	"fmt"
)

type ErrorTag string

const (
	TagNotFound       ErrorTag = "NotFound"
	TagTransport      ErrorTag = "TransportError"
	TagSubmission     ErrorTag = "SubmissionError"
	TagReceipt        ErrorTag = "ReceiptError"
	TagReceiptTimeout ErrorTag = "ReceiptTimeoutError"
)

const NotFoundMessage = "Transfer not found"

// TaggedError is implemented by every error the tracker hands to its consumers.
type TaggedError interface {
	error
	Tag() ErrorTag
}

// NotFoundError means the indexer has no transfer for the hash yet.
// Right after submission this is the expected state, not a failure.
type NotFoundError struct {
	Message string
}

func NewNotFoundError() *NotFoundError {
	return &NotFoundError{Message: NotFoundMessage}
}

func (e *NotFoundError) Error() string {
	if e == nil || e.Message == "" {
		return NotFoundMessage
	}
	return e.Message
}

func (e *NotFoundError) Tag() ErrorTag {
	return TagNotFound
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// TransportError is a failed or undecodable indexer query.
type TransportError struct {
	Err error
}

func NewTransportError(err error) *TransportError {
	return &TransportError{Err: err}
}

func (e *TransportError) Error() string {
	if e == nil || e.Err == nil {
		return "transport error"
	}
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *TransportError) Tag() ErrorTag {
	return TagTransport
}

// SubmissionError is a transaction the wallet or network refused to accept.
type SubmissionError struct {
	Chain string
	Err   error
}

func NewSubmissionError(chain string, err error) *SubmissionError {
	return &SubmissionError{Chain: chain, Err: err}
}

func (e *SubmissionError) Error() string {
	if e == nil || e.Err == nil {
		return "submission error"
	}
	return fmt.Sprintf("submission error (chain=%s): %s", e.Chain, e.Err.Error())
}

func (e *SubmissionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *SubmissionError) Tag() ErrorTag {
	return TagSubmission
}

// ReceiptError is a failed wait for a transaction receipt.
type ReceiptError struct {
	Chain string
	Hash  string
	Err   error
}

func NewReceiptError(chain, hash string, err error) *ReceiptError {
	return &ReceiptError{Chain: chain, Hash: hash, Err: err}
}

func (e *ReceiptError) Error() string {
	if e == nil || e.Err == nil {
		return "receipt error"
	}
	if e.Timeout() {
		return fmt.Sprintf("receipt timeout (chain=%s, hash=%s): %s", e.Chain, e.Hash, e.Err.Error())
	}
	return fmt.Sprintf("receipt error (chain=%s, hash=%s): %s", e.Chain, e.Hash, e.Err.Error())
}

func (e *ReceiptError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Timeout reports whether the wait ran out of time rather than failing outright.
func (e *ReceiptError) Timeout() bool {
	return e != nil && errors.Is(e.Err, context.DeadlineExceeded)
}

func (e *ReceiptError) Tag() ErrorTag {
	if e.Timeout() {
		return TagReceiptTimeout
	}
	return TagReceipt
}

// TagOf returns the tag of the first TaggedError in err's chain, or "" when there is none.
func TagOf(err error) ErrorTag {
	var te TaggedError
	if errors.As(err, &te) {
		return te.Tag()
	}
	return ""
}

// IsNotFound is true for the indexer's not-found state.
func IsNotFound(err error) bool {
	return errors.Is(err, &NotFoundError{})
}

// ErrorBody is the wire form of an error handed to consumers.
type ErrorBody struct {
	Tag     ErrorTag `json:"_tag" yaml:"_tag"`
	Message string   `json:"message" yaml:"message"`
}

func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	tag := TagOf(err)
	if tag == "" {
		tag = TagTransport
	}
	return &ErrorBody{Tag: tag, Message: err.Error()}
}
