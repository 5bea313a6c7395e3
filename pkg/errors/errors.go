package errors

import (
	"errors"
	"fmt"
)

// Standard codes used across the module. Adapters and domain packages
// define their own dotted codes (e.g. "CONNECTION_ERROR.INVALID_CONNECTION")
// built on top of these.
const (
	CodeInternal        = "INTERNAL"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeNotFound        = "NOT_FOUND"
	CodeTimeout         = "TIMEOUT"
	CodeUnavailable     = "UNAVAILABLE"
	CodeAlreadyExists   = "ALREADY_EXISTS"
	CodePermission      = "PERMISSION_DENIED"
)

// AppError is the structured error carrier used throughout the module.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New constructs an AppError with the given code, message, and optional cause.
func New(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Wrap attaches additional context to err without discarding its code, if any.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message + ": " + ae.Message, Cause: ae.Cause}
	}
	return &AppError{Code: CodeInternal, Message: message, Cause: err}
}

// Is reports whether err's code matches target's code (or delegates to
// stdlib Is when target is not an *AppError).
func Is(err, target error) bool {
	var te *AppError
	if errors.As(target, &te) {
		return err != nil && Code(err) == te.Code
	}
	return errors.Is(err, target)
}

// As delegates to the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Code extracts the AppError code from err, or "" if err is not one.
func Code(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
