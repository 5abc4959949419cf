package apperr

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an application error.
type Code string

const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeForbidden               Code = "FORBIDDEN"
	CodeQuotaExceeded           Code = "QUOTA_EXCEEDED"
	CodeNameResolutionExhausted Code = "NAME_RESOLUTION_EXHAUSTED"
	CodeBlobStoreUnavailable    Code = "BLOB_STORE_UNAVAILABLE"
	CodeInvalidArgument         Code = "INVALID_ARGUMENT"
	CodeInternal                Code = "INTERNAL"
)

// AppError carries a code, a human-readable reason and an optional cause.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, apperr.ErrNotFound) matches any not-found error.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New builds an error with a code and message.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf builds an error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new AppError.
func Wrap(err error, code Code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrNotFound                = New(CodeNotFound, "not found")
	ErrForbidden               = New(CodeForbidden, "forbidden")
	ErrQuotaExceeded           = New(CodeQuotaExceeded, "storage quota exceeded")
	ErrNameResolutionExhausted = New(CodeNameResolutionExhausted, "no free name left")
	ErrBlobStoreUnavailable    = New(CodeBlobStoreUnavailable, "blob store unavailable")
	ErrInvalidArgument         = New(CodeInvalidArgument, "invalid argument")
)

// CodeOf returns the code of err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsUserFacing reports whether the error carries a reason meant for the end user.
// Name exhaustion and unclassified errors are internal conditions.
func IsUserFacing(err error) bool {
	switch CodeOf(err) {
	case CodeNotFound, CodeForbidden, CodeQuotaExceeded, CodeInvalidArgument, CodeBlobStoreUnavailable:
		return true
	default:
		return false
	}
}
