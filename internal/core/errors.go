package core

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a transport-level
// response without string matching.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindAuth       Kind = "auth"
	KindRemote     Kind = "remote"
	KindDecode     Kind = "decode"
)

// Error is a kinded error carrying the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports invalid caller input.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// NewAuthError reports a credential or consent failure.
func NewAuthError(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Msg: msg, Err: err}
}

// NewRemoteError reports a mail API or network failure.
func NewRemoteError(msg string, err error) *Error {
	return &Error{Kind: KindRemote, Msg: msg, Err: err}
}

// NewDecodeError reports a malformed payload.
func NewDecodeError(msg string, err error) *Error {
	return &Error{Kind: KindDecode, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or the empty string when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
