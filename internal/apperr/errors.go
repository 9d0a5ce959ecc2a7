package apperr

import (
	"errors"
	"fmt"
)

// AppError is the error type shared by the quiz services
type AppError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Transient bool   `json:"-"`
	Err       error  `json:"-"`
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on the error code so sentinels compare equal to wrapped copies
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	CodeProvider      = "PROVIDER_ERROR"
	CodeDataIntegrity = "DATA_INTEGRITY"
	CodeExhausted     = "EXHAUSTED"
	CodeConflict      = "CONFLICT"
	CodeValidation    = "VALIDATION_ERROR"
	CodeLimitReached  = "LIMIT_REACHED"
)

var (
	// ErrExhausted means there is no content to show at all
	ErrExhausted = &AppError{Code: CodeExhausted, Message: "all content learned or unavailable"}
	// ErrDailyLimit means the user reached the daily item cap
	ErrDailyLimit = &AppError{Code: CodeLimitReached, Message: "daily limit reached"}
)

// Provider wraps a content provider failure
func Provider(message string, transient bool, err error) *AppError {
	return &AppError{
		Code:      CodeProvider,
		Message:   message,
		Transient: transient,
		Err:       err,
	}
}

// DataIntegrity wraps a malformed payload or cached value
func DataIntegrity(message string, err error) *AppError {
	return &AppError{
		Code:    CodeDataIntegrity,
		Message: message,
		Err:     err,
	}
}

// Conflict wraps storage contention that survived retries
func Conflict(message string, err error) *AppError {
	return &AppError{
		Code:      CodeConflict,
		Message:   message,
		Transient: true,
		Err:       err,
	}
}

// Validation reports invalid input
func Validation(message string, details string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
	}
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Transient
	}
	return false
}

// UserVisible reports whether err should be shown to the end user as is
func UserVisible(err error) bool {
	return errors.Is(err, ErrExhausted) || errors.Is(err, ErrDailyLimit)
}
