package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindMalformedRequest  ErrorKind = "malformed_request"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindServer            ErrorKind = "server"
	KindUnknown           ErrorKind = "unknown"
)

// User-facing messages for the fixed error kinds.
const (
	MsgTimeout           = "The request took too long. Please try again."
	MsgMalformedRequest  = "There was a problem with the request data."
	MsgMalformedResponse = "The server response could not be processed."
	MsgUnknown           = "An unexpected error occurred."
)

// RequestError is a classified failure of a call to the remote cart service.
// Message is safe to show to a user; Cause keeps the underlying error.
type RequestError struct {
	Kind    ErrorKind
	Status  int // set for KindServer only
	Message string
	Cause   error
}

func (e *RequestError) Error() string {
	if e.Kind == KindServer {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// KindOf reports the classification of err, or "" if err is not a RequestError.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return ""
}

func NewTimeoutError(cause error) *RequestError {
	return &RequestError{Kind: KindTimeout, Message: MsgTimeout, Cause: cause}
}

func NewMalformedRequestError(cause error) *RequestError {
	return &RequestError{Kind: KindMalformedRequest, Message: MsgMalformedRequest, Cause: cause}
}

func NewMalformedResponseError(cause error) *RequestError {
	return &RequestError{Kind: KindMalformedResponse, Message: MsgMalformedResponse, Cause: cause}
}

func NewUnknownError(cause error) *RequestError {
	return &RequestError{Kind: KindUnknown, Message: MsgUnknown, Cause: cause}
}

func NewServerError(status int, message string) *RequestError {
	return &RequestError{Kind: KindServer, Status: status, Message: message}
}
