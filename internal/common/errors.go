package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
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

// Error taxonomy. Parse errors are collected per message; the rest abort the
// run because they indicate misconfiguration rather than one bad email.
var (
	ErrParse         = errors.New("receipt layout not recognized")
	ErrNormalization = errors.New("normalization failed")
	ErrFormat        = errors.New("export invariant violated")
	ErrConfig        = errors.New("invalid configuration")
	ErrMail          = errors.New("mail source failure")
)

// NewAppError creates an AppError with the given code, message and cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewParseError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrParse
	} else {
		cause = fmt.Errorf("%w: %w", ErrParse, cause)
	}
	return NewAppError("PARSE_ERROR", message, cause)
}

func NewNormalizationError(message string) *AppError {
	return NewAppError("NORMALIZATION_ERROR", message, ErrNormalization)
}

func NewFormatError(message string) *AppError {
	return NewAppError("FORMAT_ERROR", message, ErrFormat)
}

func NewConfigError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrConfig
	} else {
		cause = fmt.Errorf("%w: %w", ErrConfig, cause)
	}
	return NewAppError("CONFIG_ERROR", message, cause)
}

func NewMailError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrMail
	} else {
		cause = fmt.Errorf("%w: %w", ErrMail, cause)
	}
	return NewAppError("MAIL_ERROR", message, cause)
}

func IsParseError(err error) bool { return errors.Is(err, ErrParse) }

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
