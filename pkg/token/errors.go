package token

import (
	"errors"
	"fmt"
)

// Error codes for token operations.
const (
	// ErrCodeMalformed indicates the token could not be split into header,
	// payload and signature, a segment was not valid base64url, or the
	// payload is not a claims object.
	ErrCodeMalformed = "TOKEN_MALFORMED"

	// ErrCodeSignatureInvalid indicates the signature does not verify
	// against the issuer's public identifier.
	ErrCodeSignatureInvalid = "TOKEN_SIGNATURE_INVALID"

	// ErrCodeSigningFailed indicates the key material refused to sign.
	ErrCodeSigningFailed = "TOKEN_SIGNING_FAILED"
)

// Error is a token error carrying one of the ErrCode* codes.
type Error struct {
	// Code is one of the TOKEN_* error codes.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinel errors for use with errors.Is.
var (
	ErrMalformed        = NewError(ErrCodeMalformed, "token structure is invalid")
	ErrSignatureInvalid = NewError(ErrCodeSignatureInvalid, "signature verification failed")
	ErrSigningFailure   = NewError(ErrCodeSigningFailed, "key material cannot sign")
)

// GetErrorCode extracts the code from an *Error, or returns "".
func GetErrorCode(err error) string {
	var tokErr *Error
	if errors.As(err, &tokErr) {
		return tokErr.Code
	}
	return ""
}
